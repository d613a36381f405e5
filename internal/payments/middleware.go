package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type ctxKey string

const (
	managerCtx ctxKey = "paymentManager"
	resultCtx  ctxKey = "paymentResult"
)

// Middleware makes the manager available to downstream handlers through FromContext.
func (m *PaymentManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), managerCtx, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func FromContext(ctx context.Context) (*PaymentManager, bool) {
	m, ok := ctx.Value(managerCtx).(*PaymentManager)
	return m, ok
}

// CallbackMiddleware verifies an inbound notification for the provider named
// by providerOf and stores the normalized result for the next handler.
// Unknown providers get 400, adapter failures get 500 with the error message.
func (m *PaymentManager) CallbackMiddleware(providerOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provider := providerOf(r)
			if _, err := m.Gateway(provider); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid payment provider")
				return
			}

			payload, err := ParseCallback(w, r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			result, err := m.HandleCallback(r.Context(), provider, payload)
			if err != nil {
				if errors.Is(err, ErrUnknownProvider) {
					writeError(w, http.StatusBadRequest, "Invalid payment provider")
					return
				}
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), resultCtx, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResultFromContext returns the callback result stored by CallbackMiddleware.
func ResultFromContext(ctx context.Context) (CallbackResult, bool) {
	res, ok := ctx.Value(resultCtx).(CallbackResult)
	return res, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
