package payments

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRoundTripper allows us to mock provider responses.
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
	}
}

func testDeps(rt http.RoundTripper) Deps {
	return Deps{Logger: zap.NewNop().Sugar(), Transport: rt}
}

func readBody(t *testing.T, req *http.Request) string {
	t.Helper()
	if req.Body == nil {
		return ""
	}
	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	return string(b)
}

// formFields decodes an urlencoded request body.
func formFields(t *testing.T, req *http.Request) map[string]string {
	t.Helper()
	require.NoError(t, req.ParseForm())
	out := map[string]string{}
	for k, v := range req.PostForm {
		out[k] = strings.Join(v, ",")
	}
	return out
}

func unreachable(t *testing.T) MockRoundTripper {
	return func(req *http.Request) *http.Response {
		t.Errorf("unexpected provider call: %s %s", req.Method, req.URL)
		return jsonResponse(http.StatusInternalServerError, `{}`)
	}
}

var bg = context.Background()
