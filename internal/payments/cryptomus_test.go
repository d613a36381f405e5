package payments

import (
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cryptomusSettings() Settings {
	return Settings{"MERCHANT_ID": "m-uuid", "PAYMENT_KEY": "pk"}
}

func cryptomusSign(body string) string {
	return md5Hex(base64.StdEncoding.EncodeToString([]byte(body)) + "pk")
}

func TestCryptomus_CreatePayment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gw, err := NewCryptomusAdapter(cryptomusSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "https://api.cryptomus.com/v1/payment", r.URL.String())
			body := readBody(t, r)
			assert.Equal(t, "m-uuid", r.Header.Get("merchant"))
			assert.Equal(t, cryptomusSign(body), r.Header.Get("sign"))
			assert.Contains(t, body, `"amount":"25.5"`)
			assert.Contains(t, body, `"network":"tron"`)
			assert.Contains(t, body, `"lifetime":3600`)
			return jsonResponse(http.StatusOK, `{"state":0,"result":{"uuid":"u-1","order_id":"o-9","amount":"25.50","currency":"USD","url":"https://pay.cryptomus.com/pay/u-1","expired_at":1700000000,"payment_status":"check"}}`)
		})))
		require.NoError(t, err)

		resp, err := gw.CreatePayment(bg, PaymentRequest{
			OrderID: "o-9", Amount: 25.5, Currency: "USD",
			Options: map[string]string{"network": "tron"},
		})
		require.NoError(t, err)
		assert.Equal(t, "https://pay.cryptomus.com/pay/u-1", resp.PaymentURL)
		assert.Equal(t, "u-1", resp.ID)
		assert.Equal(t, 25.5, resp.Amount)
		assert.Equal(t, "1700000000", resp.ExpiresAt)
	})

	t.Run("Validation", func(t *testing.T) {
		gw, err := NewCryptomusAdapter(cryptomusSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusUnprocessableEntity, `{"state":1,"message":"Validation error","errors":{"amount":["required"]}}`)
		})))
		require.NoError(t, err)

		_, err = gw.CreatePayment(bg, PaymentRequest{OrderID: "o-9", Amount: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Validation error")
	})
}

func TestCryptomus_HandleCallback(t *testing.T) {
	gw, err := NewCryptomusAdapter(cryptomusSettings(), testDeps(nil))
	require.NoError(t, err)

	unsigned := `{"type":"payment","uuid":"u-1","order_id":"o-9","amount":"25.50","payment_amount":"25.50","payment_amount_usd":"25.50","currency":"USD","network":"tron","status":"paid","url":"https://x.example/a"}`

	build := func(signBody string) CallbackPayload {
		raw := strings.TrimSuffix(unsigned, "}") + `,"sign":"` + cryptomusSign(signBody) + `"}`
		return CallbackPayload{Raw: []byte(raw), Fields: flattenJSON([]byte(raw))}
	}

	t.Run("PlainSignature", func(t *testing.T) {
		res, err := gw.HandleCallback(bg, build(unsigned))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, "o-9", res.OrderID)
		assert.Equal(t, "u-1", res.TransactionID)
		assert.Equal(t, 25.5, res.Amount)
	})

	t.Run("EscapedSlashSignature", func(t *testing.T) {
		_, err := gw.HandleCallback(bg, build(strings.ReplaceAll(unsigned, "/", `\/`)))
		require.NoError(t, err)
	})

	t.Run("InvalidSignature", func(t *testing.T) {
		_, err := gw.HandleCallback(bg, build(`{"other":1}`))
		assert.ErrorContains(t, err, "invalid signature")
	})

	t.Run("NotPaid", func(t *testing.T) {
		body := strings.Replace(unsigned, `"status":"paid"`, `"status":"cancel"`, 1)
		raw := strings.TrimSuffix(body, "}") + `,"sign":"` + cryptomusSign(body) + `"}`
		_, err := gw.HandleCallback(bg, CallbackPayload{Raw: []byte(raw), Fields: flattenJSON([]byte(raw))})
		assert.ErrorContains(t, err, "payment failed with status: cancel")
	})
}

func TestCryptomus_PaymentStatus(t *testing.T) {
	gw, err := NewCryptomusAdapter(cryptomusSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "/v1/payment/info", r.URL.Path)
		assert.Equal(t, `{"order_id":"o-9"}`, readBody(t, r))
		return jsonResponse(http.StatusOK, `{"state":0,"result":{"uuid":"u-1","order_id":"o-9","amount":"25.50","payment_status":"paid_over"}}`)
	})))
	require.NoError(t, err)

	res, err := gw.PaymentStatus(bg, "o-9")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "paid_over", res.ProviderState)
	assert.Equal(t, "u-1", res.Raw["uuid"])
}

func TestCryptomus_TestWebhook(t *testing.T) {
	gw, err := NewCryptomusAdapter(cryptomusSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "/v1/test-webhook/payment", r.URL.Path)
		assert.Contains(t, readBody(t, r), `"status":"paid"`)
		return jsonResponse(http.StatusOK, `{"state":0,"result":[]}`)
	})))
	require.NoError(t, err)

	assert.NoError(t, gw.TestWebhook(bg, "o-9", "https://shop.example/cb", "USD", "tron", ""))
}
