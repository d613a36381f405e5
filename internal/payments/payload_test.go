package payments

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	t.Run("Form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb?provider_ref=9", strings.NewReader("merchant_oid=o-1&status=success&total_amount=1050"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.1.2.3:4567"

		p, err := ParseCallback(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "o-1", p.Get("merchant_oid"))
		assert.Equal(t, "1050", p.Get("total_amount"))
		assert.Equal(t, "9", p.Get("provider_ref"))
		assert.Equal(t, "10.1.2.3", p.RemoteIP)
		assert.Equal(t, "merchant_oid=o-1&status=success&total_amount=1050", string(p.Raw))
	})

	t.Run("JSON", func(t *testing.T) {
		body := `{"order_id":"o-2","amount":10.50,"paid":true,"meta":{"a":1},"note":null}`
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		p, err := ParseCallback(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "o-2", p.Get("order_id"))
		assert.Equal(t, "10.50", p.Get("amount"))
		assert.Equal(t, "true", p.Get("paid"))
		assert.Equal(t, `{"a":1}`, p.Get("meta"))
		assert.Equal(t, "", p.Get("note"))
		assert.Equal(t, 10.5, p.Float("amount"))
		assert.Equal(t, body, string(p.Raw))
	})

	t.Run("JSONWithoutContentType", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader(` {"id":"x"}`))
		req.Header.Del("Content-Type")
		p, err := ParseCallback(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "x", p.Get("id"))
	})

	t.Run("Query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cb?checkoutId=chk-1&status=ok", nil)
		p, err := ParseCallback(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "chk-1", p.First("id", "checkoutId"))
		assert.Equal(t, "checkoutId=chk-1&status=ok", string(p.Raw))
	})

	t.Run("TooLarge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cb", strings.NewReader("a="+strings.Repeat("x", maxCallbackBytes)))
		_, err := ParseCallback(httptest.NewRecorder(), req)
		assert.Error(t, err)
	})
}
