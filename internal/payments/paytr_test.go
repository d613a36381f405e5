package payments

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paytrSettings() Settings {
	return Settings{"MERCHANT_ID": "123", "MERCHANT_KEY": "key", "MERCHANT_SALT": "salt"}
}

func TestNewPayTRAdapter_MissingField(t *testing.T) {
	_, err := NewPayTRAdapter(Settings{"MERCHANT_ID": "123", "MERCHANT_KEY": "key"}, testDeps(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field: MERCHANT_SALT")
}

func TestPayTR_CreatePayment(t *testing.T) {
	req := PaymentRequest{
		OrderID:        "ord-1",
		Name:           "T-shirt",
		Amount:         19.99,
		Currency:       "TL",
		MaxInstallment: 3,
		ExpiryDate:     "2030-01-01 00:00:00",
		Email:          "buyer@example.com",
		CallbackURL:    "https://shop.example/cb",
	}
	wantToken := base64.StdEncoding.EncodeToString(hmacSHA256("key", "T-shirt1999TL3producttr1salt"))

	t.Run("Success", func(t *testing.T) {
		gw, err := NewPayTRAdapter(paytrSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "https://www.paytr.com/odeme/api/link/create", r.URL.String())
			f := formFields(t, r)
			assert.Equal(t, "123", f["merchant_id"])
			assert.Equal(t, "1999", f["price"])
			assert.Equal(t, wantToken, f["paytr_token"])
			assert.Equal(t, "ord-1", f["callback_id"])
			assert.Equal(t, "1", f["get_qr"])
			return jsonResponse(http.StatusOK, `{"status":"success","id":"L1","link":"https://paytr.com/link/L1","base64_qr":"qr=="}`)
		})))
		require.NoError(t, err)

		resp, err := gw.CreatePayment(bg, req)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, resp.Status)
		assert.Equal(t, "https://paytr.com/link/L1", resp.PaymentURL)
		assert.Equal(t, "L1", resp.ID)
		assert.Equal(t, "qr==", resp.QR)
	})

	t.Run("APIError", func(t *testing.T) {
		gw, err := NewPayTRAdapter(paytrSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"status":"failed","reason":"invalid token"}`)
		})))
		require.NoError(t, err)

		_, err = gw.CreatePayment(bg, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token")
	})

	t.Run("MissingData", func(t *testing.T) {
		gw, err := NewPayTRAdapter(paytrSettings(), testDeps(unreachable(t)))
		require.NoError(t, err)

		bad := req
		bad.ExpiryDate = ""
		_, err = gw.CreatePayment(bg, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required field: expiryDate")
	})
}

func TestPayTR_HandleCallback(t *testing.T) {
	gw, err := NewPayTRAdapter(paytrSettings(), testDeps(nil))
	require.NoError(t, err)

	fields := func(status string) map[string]string {
		f := map[string]string{
			"callback_id":  "ord-1",
			"merchant_oid": "PT123",
			"status":       status,
			"total_amount": "1999",
			"currency":     "TL",
			"payment_type": "card",
		}
		f["hash"] = base64.StdEncoding.EncodeToString(hmacSHA256("key", "ord-1PT123salt"+status+"1999"))
		return f
	}

	t.Run("Success", func(t *testing.T) {
		res, err := gw.HandleCallback(bg, NewCallbackPayload(fields("success")))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, "ord-1", res.OrderID)
		assert.InDelta(t, 19.99, res.Amount, 0.001)
		assert.Equal(t, "card", res.PaymentType)
		assert.Equal(t, "OK", gw.Acknowledge(res))
	})

	t.Run("BadHash", func(t *testing.T) {
		f := fields("success")
		f["total_amount"] = "1"
		_, err := gw.HandleCallback(bg, NewCallbackPayload(f))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad hash")
	})

	t.Run("Failed", func(t *testing.T) {
		_, err := gw.HandleCallback(bg, NewCallbackPayload(fields("failed")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "payment failed")
	})
}
