package main

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"posbridge/internal/payments"
)

// optionPrefix marks urlencoded fields that land in PaymentRequest.Options,
// e.g. option.network=tron.
const optionPrefix = "option."

type providerInfo struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// listProvidersHandler godoc
//
//	@Summary		List configured providers
//	@Description	Returns every loaded payment provider with the operations it supports.
//	@Tags			payments
//	@Produce		json
//	@Success		200	{array}	providerInfo
//	@Router			/providers [get]
func (app *application) listProvidersHandler(w http.ResponseWriter, r *http.Request) {
	names := app.payments.Providers()
	out := make([]providerInfo, 0, len(names))
	for _, name := range names {
		out = append(out, providerInfo{Name: name, Capabilities: app.payments.Capabilities(name)})
	}
	app.jsonResponse(w, http.StatusOK, out)
}

// createPaymentHandler godoc
//
//	@Summary		Create a payment
//	@Description	Creates a payment with the named provider. Accepts JSON or an urlencoded form.
//	@Description	A missing orderId is replaced by a generated merchant reference.
//	@Tags			payments
//	@Accept			json
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			provider	path		string					true	"Provider name, e.g. paytr"
//	@Param			payload		body		payments.PaymentRequest	true	"Payment request"
//	@Success		200			{object}	payments.PaymentResponse
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		502			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/{provider} [post]
func (app *application) createPaymentHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	req, err := app.decodePaymentRequest(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validatePaymentRequest(req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if req.OrderID == "" {
		ref, err := app.references.Next()
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		req.OrderID = ref
	}

	resp, err := app.payments.CreatePayment(r.Context(), provider, req)
	if err != nil {
		app.paymentErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("payment created",
		"provider", provider,
		"order_id", req.OrderID,
		"status", resp.Status,
		"caller", subjectFromContext(r),
	)

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// validatePaymentRequest checks what every provider needs: a positive amount
// and, when a card is sent, a complete one. Provider specific fields are left
// to the adapters.
func validatePaymentRequest(req payments.PaymentRequest) error {
	if err := Validate.StructPartial(req, "Amount"); err != nil {
		return err
	}
	if req.Card != nil {
		return Validate.Struct(req.Card)
	}
	return nil
}

func (app *application) decodePaymentRequest(w http.ResponseWriter, r *http.Request) (payments.PaymentRequest, error) {
	var req payments.PaymentRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form body: %w", err)
		}
		if err := formDecoder.Decode(&req, r.PostForm); err != nil {
			return req, fmt.Errorf("invalid form body: %w", err)
		}
		for key, vals := range r.PostForm {
			if opt, ok := strings.CutPrefix(key, optionPrefix); ok && opt != "" && len(vals) > 0 {
				if req.Options == nil {
					req.Options = map[string]string{}
				}
				req.Options[opt] = vals[0]
			}
		}
	default:
		if err := readJSON(w, r, &req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	return req, nil
}

// paymentCallbackHandler godoc
//
//	@Summary		Receive a provider callback
//	@Description	Verifies a provider notification. Replies with the provider's acknowledgement body
//	@Description	when the payment succeeded, or 400 "Payment failed" otherwise.
//	@Tags			payments
//	@Accept			json
//	@Accept			x-www-form-urlencoded
//	@Produce		plain
//	@Param			provider	path		string	true	"Provider name"
//	@Success		200			{string}	string	"OK"
//	@Failure		400			{object}	error
//	@Failure		500			{object}	error
//	@Router			/payments/{provider}/callback [post]
func (app *application) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	result, ok := payments.ResultFromContext(r.Context())
	if !ok {
		app.internalServerError(w, r, errors.New("callback result missing from context"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if result.Status != payments.StatusSuccess {
		app.logger.Warnw("payment callback not successful", "provider", provider, "order_id", result.OrderID, "status", result.Status)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Payment failed"))
		return
	}

	app.logger.Infow("payment confirmed",
		"provider", provider,
		"order_id", result.OrderID,
		"transaction_id", result.TransactionID,
		"amount", result.Amount,
		"currency", result.Currency,
	)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(app.payments.Acknowledgement(provider, result)))
}

// paymentStatusHandler godoc
//
//	@Summary		Look up a payment
//	@Description	Asks the provider for the current state of a payment.
//	@Tags			payments
//	@Produce		json
//	@Param			provider	path		string	true	"Provider name"
//	@Param			id			path		string	true	"Provider payment id or order id"
//	@Success		200			{object}	payments.StatusResult
//	@Failure		404			{object}	error
//	@Failure		501			{object}	error
//	@Failure		502			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/{provider}/status/{id} [get]
func (app *application) paymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	id := chi.URLParam(r, "id")
	if id == "" {
		app.badRequestResponse(w, r, errors.New("missing payment id"))
		return
	}

	res, err := app.payments.PaymentStatus(r.Context(), provider, id)
	if err != nil {
		app.paymentErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, res); err != nil {
		app.internalServerError(w, r, err)
	}
}

// refundPaymentHandler godoc
//
//	@Summary		Refund a payment
//	@Description	Refunds a payment fully, or partially when amount is set.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			provider	path		string					true	"Provider name"
//	@Param			payload		body		payments.RefundRequest	true	"Refund request"
//	@Success		200			{object}	payments.RefundResult
//	@Failure		400			{object}	error
//	@Failure		501			{object}	error
//	@Failure		502			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/{provider}/refund [post]
func (app *application) refundPaymentHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req payments.RefundRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	res, err := app.payments.RefundPayment(r.Context(), provider, req)
	if err != nil {
		app.paymentErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("payment refunded", "provider", provider, "payment_id", req.PaymentID, "status", res.Status, "caller", subjectFromContext(r))

	if err := app.jsonResponse(w, http.StatusOK, res); err != nil {
		app.internalServerError(w, r, err)
	}
}
