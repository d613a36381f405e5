package payments

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymayaSettings() Settings {
	return Settings{"PUBLIC_KEY": "pk-test", "SECRET_KEY": "sk-test"}
}

func basicValue(key string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"))
}

func TestPayMaya_CreatePayment(t *testing.T) {
	gw, err := NewPayMayaAdapter(paymayaSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "https://pg-sandbox.paymaya.com/checkout/v1/checkouts", r.URL.String())
		assert.Equal(t, basicValue("pk-test"), r.Header.Get("Authorization"))
		body := readBody(t, r)
		assert.Contains(t, body, `"requestReferenceNumber":"ORD-1"`)
		assert.Contains(t, body, `"value":"150.00"`)
		assert.Contains(t, body, `"failure":"https://shop.example/ok"`)
		return jsonResponse(http.StatusOK, `{"checkoutId":"chk-1","redirectUrl":"https://payments-web-sandbox.paymaya.com/v2/checkout?id=chk-1"}`)
	})))
	require.NoError(t, err)

	resp, err := gw.CreatePayment(bg, PaymentRequest{
		OrderID: "ORD-1", Name: "Ticket", Amount: 150, Currency: "PHP", SuccessURL: "https://shop.example/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "chk-1", resp.ID)
	assert.Contains(t, resp.PaymentURL, "id=chk-1")
}

func TestPayMaya_CreatePaymentMissingFields(t *testing.T) {
	gw, err := NewPayMayaAdapter(paymayaSettings(), testDeps(unreachable(t)))
	require.NoError(t, err)

	_, err = gw.CreatePayment(bg, PaymentRequest{Name: "Ticket", Amount: 150, Currency: "PHP"})
	assert.EqualError(t, err, "paymaya: missing required field: successUrl")
}

func TestPayMaya_HandleCallback(t *testing.T) {
	state := "PAYMENT_SUCCESS"
	gw, err := NewPayMayaAdapter(paymayaSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "/checkout/v1/checkouts/chk-1", r.URL.Path)
		assert.Equal(t, basicValue("sk-test"), r.Header.Get("Authorization"))
		return jsonResponse(http.StatusOK, `[{"id":"chk-1","paymentStatus":"`+state+`","requestReferenceNumber":"ORD-1","totalAmount":{"value":"150.00","currency":"PHP"}}]`)
	})))
	require.NoError(t, err)

	res, err := gw.HandleCallback(bg, NewCallbackPayload(map[string]string{"checkoutId": "chk-1"}))
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", res.OrderID)
	assert.Equal(t, 150.0, res.Amount)
	assert.Equal(t, "PHP", res.Currency)

	state = "PAYMENT_FAILED"
	_, err = gw.HandleCallback(bg, NewCallbackPayload(map[string]string{"checkoutId": "chk-1"}))
	assert.EqualError(t, err, "paymaya: payment failed with status: PAYMENT_FAILED")

	st, err := gw.PaymentStatus(bg, "chk-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFail, st.Status)

	_, err = gw.HandleCallback(bg, NewCallbackPayload(nil))
	assert.ErrorContains(t, err, "missing required fields")
}

func TestPayMaya_VoidAndRefund(t *testing.T) {
	gw, err := NewPayMayaAdapter(paymayaSettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		switch r.URL.Path {
		case "/payments/v1/payments/pay-1/voids":
			assert.Contains(t, readBody(t, r), `"reason":"duplicate"`)
			return jsonResponse(http.StatusOK, `{"id":"void-1","status":"SUCCESS"}`)
		case "/payments/v1/payments/pay-1/refunds":
			assert.Contains(t, readBody(t, r), `"currency":"PHP"`)
			return jsonResponse(http.StatusOK, `{"id":"ref-1","status":"SUCCESS"}`)
		}
		t.Errorf("unexpected path %s", r.URL.Path)
		return jsonResponse(http.StatusNotFound, `{}`)
	})))
	require.NoError(t, err)

	void, err := gw.VoidPayment(bg, "pay-1", "duplicate")
	require.NoError(t, err)
	assert.Equal(t, "void-1", void.RefundID)

	ref, err := gw.RefundPayment(bg, RefundRequest{PaymentID: "pay-1", Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, ref.Status)
	assert.Equal(t, "ref-1", ref.RefundID)
}
