package payments

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type PayMayaConfig struct {
	PublicKey  string `env:"PUBLIC_KEY" validate:"required"`
	SecretKey  string `env:"SECRET_KEY" validate:"required"`
	Production bool   `env:"PRODUCTION" envDefault:"false"`
	BaseURL    string `env:"BASE_URL"`
}

// PayMayaAdapter drives the PayMaya hosted checkout.
type PayMayaAdapter struct {
	cfg    PayMayaConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewPayMayaAdapter(settings Settings, deps Deps) (*PayMayaAdapter, error) {
	var cfg PayMayaConfig
	if err := decodeConfig("paymaya", settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://pg-sandbox.paymaya.com"
		if cfg.Production {
			cfg.BaseURL = "https://pg.paymaya.com"
		}
	}
	return &PayMayaAdapter{cfg: cfg, client: deps.client("paymaya"), logger: deps.logger()}, nil
}

// basic authenticates with a key and an empty password.
func basic(key string) http.Header {
	return http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"))}}
}

func (p *PayMayaAdapter) apiError(resp *httpclient.Response) error {
	return fmt.Errorf("paymaya: API error: %s", firstNonEmpty(string(resp.Body), http.StatusText(resp.StatusCode)))
}

func (p *PayMayaAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("paymaya", req, "Name", "Amount", "Currency", "SuccessURL"); err != nil {
		return PaymentResponse{}, err
	}

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	amount := map[string]any{"value": formatAmount(req.Amount), "currency": req.Currency}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	body := map[string]any{
		"totalAmount":            amount,
		"requestReferenceNumber": firstNonEmpty(req.OrderID, "REF-"+now),
		"redirectUrl": map[string]string{
			"success": req.SuccessURL,
			"failure": firstNonEmpty(req.FailURL, req.SuccessURL),
			"cancel":  firstNonEmpty(req.CancelURL, req.SuccessURL),
		},
		"items": []map[string]any{{
			"name":        req.Name,
			"description": firstNonEmpty(req.Description, req.Name),
			"quantity":    quantity,
			"code":        req.Option("code", "ITEM-"+now),
			"amount":      amount,
			"totalAmount": amount,
		}},
		"metadata": metadata,
	}

	resp, err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/checkout/v1/checkouts", body, basic(p.cfg.PublicKey))
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("paymaya: no response received from API: %w", err)
	}
	if !resp.OK() {
		return PaymentResponse{}, p.apiError(resp)
	}

	res := gjson.ParseBytes(resp.Body)
	id := res.Get("checkoutId").String()
	return PaymentResponse{
		Status:        StatusSuccess,
		ID:            id,
		TransactionID: id,
		PaymentURL:    res.Get("redirectUrl").String(),
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		ExpiresAt:     res.Get("expiresAt").String(),
	}, nil
}

// checkout fetches a checkout with the secret key. The API may wrap the
// object in a one-element array.
func (p *PayMayaAdapter) checkout(ctx context.Context, id string) (gjson.Result, error) {
	resp, err := p.client.Get(ctx, p.cfg.BaseURL+"/checkout/v1/checkouts/"+url.PathEscape(id), basic(p.cfg.SecretKey))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("paymaya: retrieve checkout: %w", err)
	}
	if !resp.OK() {
		return gjson.Result{}, p.apiError(resp)
	}
	res := gjson.ParseBytes(resp.Body)
	if res.IsArray() {
		res = res.Get("0")
	}
	return res, nil
}

func checkoutState(c gjson.Result) string {
	return firstNonEmpty(c.Get("paymentStatus").String(), c.Get("status").String())
}

func checkoutAmount(c gjson.Result) (float64, string) {
	if total := c.Get("totalAmount"); total.Exists() {
		return parseAmount(firstNonEmpty(total.Get("value").String(), total.Get("amount").String())), total.Get("currency").String()
	}
	return c.Get("amount").Float(), c.Get("currency").String()
}

// HandleCallback re-reads the checkout named in the notification and
// accepts it only once PayMaya reports PAYMENT_SUCCESS.
func (p *PayMayaAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	id := payload.First("checkoutId", "id")
	if id == "" {
		return CallbackResult{}, fmt.Errorf("paymaya: invalid callback data: missing required fields")
	}
	c, err := p.checkout(ctx, id)
	if err != nil {
		return CallbackResult{}, err
	}
	if state := checkoutState(c); state != "PAYMENT_SUCCESS" {
		return CallbackResult{}, fmt.Errorf("paymaya: payment failed with status: %s", state)
	}

	amount, currency := checkoutAmount(c)
	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       c.Get("requestReferenceNumber").String(),
		TransactionID: firstNonEmpty(c.Get("id").String(), id),
		Amount:        amount,
		Currency:      currency,
		PaymentType:   c.Get("paymentScheme").String(),
		PaymentDate:   c.Get("paymentDetails.paymentAt").String(),
	}, nil
}

func (p *PayMayaAdapter) PaymentStatus(ctx context.Context, id string) (StatusResult, error) {
	c, err := p.checkout(ctx, id)
	if err != nil {
		return StatusResult{}, err
	}
	state := checkoutState(c)
	status := StatusPending
	switch state {
	case "PAYMENT_SUCCESS", "COMPLETED":
		status = StatusSuccess
	case "PAYMENT_FAILED", "PAYMENT_EXPIRED", "PAYMENT_CANCELLED", "EXPIRED", "CANCELLED", "VOIDED", "REFUNDED":
		status = StatusFail
	}
	amount, currency := checkoutAmount(c)
	raw, _ := c.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       c.Get("requestReferenceNumber").String(),
		TransactionID: firstNonEmpty(c.Get("id").String(), id),
		Amount:        amount,
		Currency:      currency,
		Raw:           raw,
	}, nil
}

// VoidPayment cancels an authorized payment before settlement.
func (p *PayMayaAdapter) VoidPayment(ctx context.Context, paymentID, reason string) (RefundResult, error) {
	endpoint := p.cfg.BaseURL + "/payments/v1/payments/" + url.PathEscape(paymentID) + "/voids"
	resp, err := p.client.PostJSON(ctx, endpoint, map[string]string{"reason": reason}, basic(p.cfg.SecretKey))
	if err != nil {
		return RefundResult{}, fmt.Errorf("paymaya: void payment: %w", err)
	}
	if !resp.OK() {
		return RefundResult{}, p.apiError(resp)
	}
	res := gjson.ParseBytes(resp.Body)
	raw, _ := res.Value().(map[string]any)
	return RefundResult{Status: StatusSuccess, RefundID: res.Get("id").String(), Message: res.Get("status").String(), Raw: raw}, nil
}

func (p *PayMayaAdapter) RefundPayment(ctx context.Context, req RefundRequest) (RefundResult, error) {
	body := map[string]any{"reason": firstNonEmpty(req.Reason, "refund")}
	if req.Amount > 0 {
		body["totalAmount"] = map[string]any{"amount": req.Amount, "currency": firstNonEmpty(req.Currency, "PHP")}
	}
	endpoint := p.cfg.BaseURL + "/payments/v1/payments/" + url.PathEscape(req.PaymentID) + "/refunds"
	resp, err := p.client.PostJSON(ctx, endpoint, body, basic(p.cfg.SecretKey))
	if err != nil {
		return RefundResult{}, fmt.Errorf("paymaya: refund payment: %w", err)
	}
	if !resp.OK() {
		return RefundResult{}, p.apiError(resp)
	}
	res := gjson.ParseBytes(resp.Body)
	raw, _ := res.Value().(map[string]any)
	status := StatusSuccess
	if res.Get("status").String() == "FAILED" {
		status = StatusFail
	}
	return RefundResult{Status: status, RefundID: res.Get("id").String(), Message: res.Get("status").String(), Raw: raw}, nil
}
