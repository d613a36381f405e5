package payments

import (
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fedapaySettings() Settings {
	return Settings{"API_KEY": "sk_sandbox_1"}
}

func TestFedaPay_CreatePayment(t *testing.T) {
	gw, err := NewFedaPayAdapter(fedapaySettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "Bearer sk_sandbox_1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/transactions":
			body := readBody(t, r)
			assert.Contains(t, body, `"iso":"XOF"`)
			assert.Contains(t, body, `"country":"BJ"`)
			assert.Contains(t, body, `"mode":"mtn"`)
			return jsonResponse(http.StatusOK, `{"v1/transaction":{"id":104,"reference":"ord-1","status":"pending"}}`)
		case "/v1/transactions/104/token":
			assert.Contains(t, readBody(t, r), `"return_url":"https://shop.example/ok"`)
			return jsonResponse(http.StatusOK, `{"token":"tok-104","url":"https://sandbox-process.fedapay.com/tok-104"}`)
		}
		t.Errorf("unexpected path %s", r.URL.Path)
		return jsonResponse(http.StatusNotFound, `{}`)
	})))
	require.NoError(t, err)

	resp, err := gw.CreatePayment(bg, PaymentRequest{
		OrderID: "ord-1", Amount: 5000, Currency: "xof", Description: "Ticket",
		Method: "mtn", Phone: "97000000", Email: "a@b.c",
		SuccessURL: "https://shop.example/ok", CallbackURL: "https://shop.example/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "104", resp.ID)
	assert.Equal(t, "ord-1", resp.OrderID)
	assert.Equal(t, "tok-104", resp.Token)
	assert.Equal(t, "https://sandbox-process.fedapay.com/tok-104", resp.PaymentURL)
}

func TestFedaPay_CreatePaymentFailure(t *testing.T) {
	gw, err := NewFedaPayAdapter(fedapaySettings(), testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		return jsonResponse(http.StatusUnauthorized, `{"message":"Invalid API key"}`)
	})))
	require.NoError(t, err)

	resp, err := gw.CreatePayment(bg, PaymentRequest{Amount: 100, Currency: "XOF", Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusFail, resp.Status)
	assert.Contains(t, resp.Message, "Invalid API key")
}

func TestFedaPay_HandleCallback(t *testing.T) {
	status := "approved"
	rt := MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "/v1/transactions/104", r.URL.Path)
		return jsonResponse(http.StatusOK, `{"v1/transaction":{"id":104,"reference":"ord-1","amount":5000,"status":"`+status+`","mode":"mtn","currency":{"iso":"XOF"},"approved_at":"2030-01-01T10:00:00Z"}}`)
	})

	t.Run("Approved", func(t *testing.T) {
		gw, err := NewFedaPayAdapter(fedapaySettings(), testDeps(rt))
		require.NoError(t, err)
		res, err := gw.HandleCallback(bg, NewCallbackPayload(map[string]string{
			"name": "transaction.approved", "entity": `{"id":104}`,
		}))
		require.NoError(t, err)
		assert.Equal(t, "ord-1", res.OrderID)
		assert.Equal(t, "104", res.TransactionID)
		assert.Equal(t, 5000.0, res.Amount)
		assert.Equal(t, "XOF", res.Currency)
		assert.Equal(t, "mtn", res.PaymentType)
	})

	t.Run("Declined", func(t *testing.T) {
		status = "declined"
		defer func() { status = "approved" }()
		gw, err := NewFedaPayAdapter(fedapaySettings(), testDeps(rt))
		require.NoError(t, err)
		_, err = gw.HandleCallback(bg, NewCallbackPayload(map[string]string{"id": "104"}))
		assert.EqualError(t, err, "fedapay: payment failed with status: declined")
	})

	t.Run("MissingID", func(t *testing.T) {
		gw, err := NewFedaPayAdapter(fedapaySettings(), testDeps(unreachable(t)))
		require.NoError(t, err)
		_, err = gw.HandleCallback(bg, NewCallbackPayload(nil))
		assert.ErrorContains(t, err, "missing transaction ID")
	})

	t.Run("Signature", func(t *testing.T) {
		settings := fedapaySettings()
		settings["WEBHOOK_SECRET"] = "wh_sec"
		gw, err := NewFedaPayAdapter(settings, testDeps(rt))
		require.NoError(t, err)
		now := time.Unix(1_900_000_000, 0)
		gw.now = func() time.Time { return now }

		raw := []byte(`{"name":"transaction.approved","entity":{"id":104}}`)
		ts := strconv.FormatInt(now.Unix(), 10)
		sig := hex.EncodeToString(hmacSHA256("wh_sec", ts+"."+string(raw)))

		payload := CallbackPayload{Raw: raw, Fields: flattenJSON(raw), Header: http.Header{}}
		payload.Header.Set("X-FEDAPAY-SIGNATURE", "t="+ts+",s="+sig)
		_, err = gw.HandleCallback(bg, payload)
		require.NoError(t, err)

		payload.Header.Set("X-FEDAPAY-SIGNATURE", "t="+ts+",s=deadbeef")
		_, err = gw.HandleCallback(bg, payload)
		assert.EqualError(t, err, "fedapay: invalid webhook signature")

		gw.now = func() time.Time { return now.Add(time.Hour) }
		payload.Header.Set("X-FEDAPAY-SIGNATURE", "t="+ts+",s="+sig)
		_, err = gw.HandleCallback(bg, payload)
		assert.ErrorContains(t, err, "tolerance")

		// a signature stamped far in the future is rejected too
		gw.now = func() time.Time { return now.Add(-time.Hour) }
		_, err = gw.HandleCallback(bg, payload)
		assert.EqualError(t, err, "fedapay: signature timestamp outside the tolerance zone")

		gw.now = func() time.Time { return now.Add(-4 * time.Minute) }
		_, err = gw.HandleCallback(bg, payload)
		require.NoError(t, err)
	})
}

func TestFedaPay_ListTransactions(t *testing.T) {
	gw, err := NewFedaPayAdapter(Settings{"API_KEY": "k", "ENVIRONMENT": "live", "ACCOUNT_ID": "9"}, testDeps(MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "api.fedapay.com", r.URL.Host)
		assert.Equal(t, "9", r.Header.Get("FedaPay-Account"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		return jsonResponse(http.StatusOK, `{"v1/transactions":[{"id":1},{"id":2}],"meta":{"current_page":2}}`)
	})))
	require.NoError(t, err)

	txs, err := gw.ListTransactions(bg, url.Values{"page": {"2"}})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestFedaPay_InvalidEnvironment(t *testing.T) {
	_, err := NewFedaPayAdapter(Settings{"API_KEY": "k", "ENVIRONMENT": "prod"}, testDeps(nil))
	assert.ErrorContains(t, err, "ENVIRONMENT")
}
