package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(name string) Config {
	return Config{
		Name:         name,
		Timeout:      5 * time.Second,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		OpenTimeout:  time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("price"))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	c := New(testConfig("test-form"), nil)
	resp, err := c.PostForm(context.Background(), server.URL, url.Values{"price": {"42"}}, http.Header{"X-Key": {"secret"}})
	require.NoError(t, err)
	assert.True(t, resp.OK())

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "success", out.Status)
}

func TestClient_PostJSONRawBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":"b\/c"}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(testConfig("test-raw"), nil)
	resp, err := c.PostJSON(context.Background(), server.URL, []byte(`{"a":"b\/c"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClient_ClientErrorIsNotAFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad"}`))
	}))
	defer server.Close()

	c := New(testConfig("test-4xx"), nil)
	for i := 0; i < 5; i++ {
		resp, err := c.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
		assert.False(t, resp.OK())
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestClient_TripsOnServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(testConfig("test-trip"), nil)
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), server.URL, nil)
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, c.State())
	assert.Equal(t, float64(2), testutil.ToFloat64(breakerState.WithLabelValues("test-trip")))

	_, err := c.Get(context.Background(), server.URL, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
