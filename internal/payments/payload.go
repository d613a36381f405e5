package payments

import (
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const maxCallbackBytes = 1 << 20

// ParseCallback reads an inbound provider notification. GET requests use the
// query string, JSON bodies are flattened to their top-level members and any
// other body is treated as an urlencoded form.
func ParseCallback(w http.ResponseWriter, r *http.Request) (CallbackPayload, error) {
	payload := CallbackPayload{
		Fields:   map[string]string{},
		Header:   r.Header.Clone(),
		RemoteIP: remoteIP(r),
	}

	if r.Method == http.MethodGet || r.Body == nil || r.Body == http.NoBody {
		mergeValues(payload.Fields, r.URL.Query())
		payload.Raw = []byte(r.URL.RawQuery)
		return payload, nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		return payload, fmt.Errorf("read callback body: %w", err)
	}
	payload.Raw = raw

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case mediaType == "application/json" || (mediaType == "" && strings.HasPrefix(trimmed, "{")):
		if !gjson.ValidBytes(raw) {
			return payload, fmt.Errorf("invalid JSON callback body")
		}
		payload.Fields = flattenJSON(raw)
	default:
		values, err := url.ParseQuery(trimmed)
		if err != nil {
			return payload, fmt.Errorf("parse callback form: %w", err)
		}
		mergeValues(payload.Fields, values)
	}

	// Some providers append identifiers to the callback URL as well.
	for k, vs := range r.URL.Query() {
		if _, ok := payload.Fields[k]; !ok && len(vs) > 0 {
			payload.Fields[k] = vs[0]
		}
	}
	return payload, nil
}

// flattenJSON maps each top-level member to a string. Numbers keep their
// literal text; objects and arrays stay raw JSON.
func flattenJSON(raw []byte) map[string]string {
	out := map[string]string{}
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String, gjson.True, gjson.False:
			out[key.String()] = value.String()
		case gjson.Number:
			out[key.String()] = value.Raw
		case gjson.Null:
			out[key.String()] = ""
		default:
			out[key.String()] = value.Raw
		}
		return true
	})
	return out
}

func mergeValues(dst map[string]string, values url.Values) {
	for k, vs := range values {
		if len(vs) > 0 {
			dst[k] = vs[0]
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
