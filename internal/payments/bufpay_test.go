package payments

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufpayRequest() PaymentRequest {
	return PaymentRequest{
		Name:        "VIP",
		Method:      "alipay",
		Amount:      12.5,
		Currency:    "CNY",
		OrderID:     "o-1",
		CustomerID:  "u-9",
		CallbackURL: "https://shop.example/notify",
		SuccessURL:  "https://shop.example/ok",
	}
}

func TestBufPay_CreatePayment(t *testing.T) {
	settings := Settings{"APP_ID": "app1", "APP_SECRET": "s3"}

	t.Run("Success", func(t *testing.T) {
		gw, err := NewBufPayAdapter(settings, testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "https://bufpay.com/api/pay/app1?format=json", r.URL.String())
			f := formFields(t, r)
			want := strings.ToUpper(md5Hex("VIPalipay12.50o-1u-9https://shop.example/notifyhttps://shop.example/oks3"))
			assert.Equal(t, want, f["sign"])
			assert.Equal(t, "12.50", f["price"])
			return jsonResponse(http.StatusOK, `{"status":"ok","aoid":"A77","price":"12.50","qr_price":12.49,"qr":"weixin://x","expires_in":300}`)
		})))
		require.NoError(t, err)

		resp, err := gw.CreatePayment(bg, bufpayRequest())
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, resp.Status)
		assert.Equal(t, "A77", resp.TransactionID)
		assert.Equal(t, "weixin://x", resp.QR)
		assert.Equal(t, 12.5, resp.Amount)
		assert.Equal(t, "300", resp.ExpiresAt)
		assert.Equal(t, "12.49", resp.Extra["qr_price"])
	})

	t.Run("Rejected", func(t *testing.T) {
		gw, err := NewBufPayAdapter(settings, testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"status":"sign error"}`)
		})))
		require.NoError(t, err)

		resp, err := gw.CreatePayment(bg, bufpayRequest())
		require.NoError(t, err)
		assert.Equal(t, StatusFail, resp.Status)
		assert.Equal(t, "sign error", resp.Message)
	})
}

func TestBufPay_HandleCallback(t *testing.T) {
	gw, err := NewBufPayAdapter(Settings{"APP_ID": "app1", "APP_SECRET": "s3"}, testDeps(nil))
	require.NoError(t, err)

	fields := map[string]string{
		"aoid":      "A77",
		"order_id":  "o-1",
		"order_uid": "u-9",
		"price":     "12.50",
		"pay_price": "12.49",
		"status":    "success",
	}
	fields["sign"] = strings.ToUpper(md5Hex("A77o-1u-912.5012.49s3"))

	res, err := gw.HandleCallback(bg, NewCallbackPayload(fields))
	require.NoError(t, err)
	assert.Equal(t, "o-1", res.OrderID)
	assert.Equal(t, 12.49, res.Amount)
	assert.Equal(t, 12.5, res.Extra["original_amount"])

	fields["sign"] = "BAD"
	_, err = gw.HandleCallback(bg, NewCallbackPayload(fields))
	assert.ErrorContains(t, err, "invalid signature")
}

func TestBufPay_HandleCallbackNotPaid(t *testing.T) {
	gw, err := NewBufPayAdapter(Settings{"APP_ID": "app1", "APP_SECRET": "s3"}, testDeps(nil))
	require.NoError(t, err)

	// the status is not part of the signature, so a valid sign alone is not enough
	fields := map[string]string{
		"aoid":      "A77",
		"order_id":  "o-1",
		"order_uid": "u-9",
		"price":     "12.50",
		"pay_price": "12.49",
		"status":    "failed",
		"sign":      strings.ToUpper(md5Hex("A77o-1u-912.5012.49s3")),
	}
	_, err = gw.HandleCallback(bg, NewCallbackPayload(fields))
	assert.EqualError(t, err, "bufpay: payment failed with status: failed")

	delete(fields, "status")
	_, err = gw.HandleCallback(bg, NewCallbackPayload(fields))
	assert.EqualError(t, err, "bufpay: payment failed with status: ")
}

func TestBufPay_PaymentStatus(t *testing.T) {
	gw, err := NewBufPayAdapter(Settings{"APP_ID": "app1", "APP_SECRET": "s3"}, testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/query/A77", r.URL.Path)
		return jsonResponse(http.StatusOK, `{"status":"payed","order_id":"o-1"}`)
	})))
	require.NoError(t, err)

	res, err := gw.PaymentStatus(bg, "A77")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "o-1", res.OrderID)
}
