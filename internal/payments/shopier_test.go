package payments

import (
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopierSettings() Settings {
	return Settings{"PAT": "tok", "USERNAME": "shop", "KEY": "whkey"}
}

func TestShopier_CreatePayment(t *testing.T) {
	gw, err := NewShopierAdapter(shopierSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "https://api.shopier.com/v1/products", r.URL.String())
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body := readBody(t, r)
		assert.Contains(t, body, `"price":"49.90"`)
		assert.Contains(t, body, `"shippingPayer":"sellerPays"`)
		assert.Contains(t, body, `"stockQuantity":5`)
		return jsonResponse(http.StatusCreated, `{"id":"p-1","url":"https://shopier.com/p-1"}`)
	})))
	require.NoError(t, err)

	resp, err := gw.CreatePayment(bg, PaymentRequest{Name: "E-book", Amount: 49.9, Currency: "TRY", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, "p-1", resp.ID)
	assert.Equal(t, "https://shopier.com/p-1", resp.PaymentURL)
}

func TestShopier_CreatePaymentAPIError(t *testing.T) {
	gw, err := NewShopierAdapter(shopierSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		return jsonResponse(http.StatusUnauthorized, `{"message":"invalid token"}`)
	})))
	require.NoError(t, err)

	_, err = gw.CreatePayment(bg, PaymentRequest{Name: "E-book", Amount: 49.9})
	assert.EqualError(t, err, "shopier: API error: invalid token")
}

func TestShopier_HandleCallback(t *testing.T) {
	gw, err := NewShopierAdapter(shopierSettings(), testDeps(nil))
	require.NoError(t, err)

	res := base64.StdEncoding.EncodeToString([]byte(`{"email":"a@b.c","orderid":"991","currency":1,"price":"49.90","buyername":"Ada","productid":"p-1","istest":1}`))
	hash := hex.EncodeToString(hmacSHA256("whkey", res+"shop"))

	out, err := gw.HandleCallback(bg, NewCallbackPayload(map[string]string{"res": res, "hash": hash}))
	require.NoError(t, err)
	assert.Equal(t, "991", out.OrderID)
	assert.Equal(t, "USD", out.Currency)
	assert.Equal(t, 49.9, out.Amount)
	assert.True(t, out.Test)
	assert.Equal(t, "Ada", out.Extra["buyer_name"])

	_, err = gw.HandleCallback(bg, NewCallbackPayload(map[string]string{"res": res, "hash": "00"}))
	assert.ErrorContains(t, err, "invalid webhook signature")

	_, err = gw.HandleCallback(bg, NewCallbackPayload(map[string]string{"res": res}))
	assert.ErrorContains(t, err, "missing webhook parameters")
}

func TestShopier_DeleteProduct(t *testing.T) {
	gw, err := NewShopierAdapter(shopierSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/products/p-1", r.URL.Path)
		return jsonResponse(http.StatusOK, `{}`)
	})))
	require.NoError(t, err)

	assert.NoError(t, gw.DeleteProduct(bg, "p-1"))
	assert.Error(t, gw.DeleteProduct(bg, ""))
}
