package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type CryptomusConfig struct {
	MerchantID string `env:"MERCHANT_ID" validate:"required"`
	PaymentKey string `env:"PAYMENT_KEY" validate:"required"`
	BaseURL    string `env:"BASE_URL" envDefault:"https://api.cryptomus.com/v1"`
}

// CryptomusAdapter creates crypto invoices. Requests and webhooks are signed
// with md5(base64(body) + payment key).
type CryptomusAdapter struct {
	cfg    CryptomusConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewCryptomusAdapter(settings Settings, deps Deps) (*CryptomusAdapter, error) {
	var cfg CryptomusConfig
	if err := decodeConfig("cryptomus", settings, &cfg); err != nil {
		return nil, err
	}
	return &CryptomusAdapter{cfg: cfg, client: deps.client("cryptomus"), logger: deps.logger()}, nil
}

func (c *CryptomusAdapter) sign(body []byte) string {
	return md5Hex(base64.StdEncoding.EncodeToString(body) + c.cfg.PaymentKey)
}

// post signs body exactly as sent.
func (c *CryptomusAdapter) post(ctx context.Context, path string, body []byte) (gjson.Result, error) {
	header := http.Header{"merchant": {c.cfg.MerchantID}, "sign": {c.sign(body)}}
	resp, err := c.client.PostJSON(ctx, c.cfg.BaseURL+path, body, header)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.ParseBytes(resp.Body)
	if !resp.OK() || res.Get("state").Int() != 0 {
		msg := res.Get("message").String()
		if errs := res.Get("errors"); errs.Exists() {
			msg += " " + errs.Raw
		}
		return res, fmt.Errorf("API error (http=%d): %s", resp.StatusCode, firstNonEmpty(msg, string(resp.Body)))
	}
	return res.Get("result"), nil
}

func (c *CryptomusAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("cryptomus", req, "OrderID", "Amount"); err != nil {
		return PaymentResponse{}, err
	}

	lifetime := req.Lifetime
	if lifetime <= 0 {
		lifetime = 3600
	}
	body, err := json.Marshal(struct {
		MerchantID        string `json:"merchant_id"`
		OrderID           string `json:"order_id"`
		Amount            string `json:"amount"`
		Currency          string `json:"currency"`
		URLCallback       string `json:"url_callback,omitempty"`
		URLReturn         string `json:"url_return,omitempty"`
		URLSuccess        string `json:"url_success,omitempty"`
		IsPaymentMultiple bool   `json:"is_payment_multiple"`
		Lifetime          int    `json:"lifetime"`
	}{
		MerchantID:  c.cfg.MerchantID,
		OrderID:     req.OrderID,
		Amount:      plainAmount(req.Amount),
		Currency:    firstNonEmpty(req.Currency, "USD"),
		URLCallback: req.CallbackURL,
		URLReturn:   firstNonEmpty(req.CancelURL, req.SuccessURL),
		URLSuccess:  req.SuccessURL,
		Lifetime:    lifetime,
	})
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("cryptomus: encode request: %w", err)
	}
	for _, opt := range []string{"network", "to_currency"} {
		if v := req.Option(opt, ""); v != "" {
			if body, err = sjson.SetBytes(body, opt, v); err != nil {
				return PaymentResponse{}, fmt.Errorf("cryptomus: set %s: %w", opt, err)
			}
		}
	}

	res, err := c.post(ctx, "/payment", body)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("cryptomus: create payment: %w", err)
	}

	return PaymentResponse{
		Status:        StatusSuccess,
		PaymentURL:    res.Get("url").String(),
		ID:            res.Get("uuid").String(),
		TransactionID: res.Get("uuid").String(),
		OrderID:       res.Get("order_id").String(),
		Amount:        res.Get("amount").Float(),
		Currency:      res.Get("currency").String(),
		ExpiresAt:     res.Get("expired_at").String(),
		Extra: map[string]any{
			"payment_status": res.Get("payment_status").String(),
			"address":        res.Get("address").String(),
			"network":        res.Get("network").String(),
		},
	}, nil
}

// HandleCallback verifies the webhook sign over the body with "sign" removed.
// The signature is accepted over either the compact body or its PHP-style
// form with "/" escaped as "\/".
func (c *CryptomusAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	if !gjson.ValidBytes(payload.Raw) {
		return CallbackResult{}, fmt.Errorf("cryptomus: notification failed: body is not JSON")
	}
	got := gjson.GetBytes(payload.Raw, "sign").String()

	stripped, err := sjson.DeleteBytes(payload.Raw, "sign")
	if err != nil {
		return CallbackResult{}, fmt.Errorf("cryptomus: strip sign: %w", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, stripped); err != nil {
		return CallbackResult{}, fmt.Errorf("cryptomus: compact body: %w", err)
	}
	plain := compact.Bytes()
	escaped := bytes.ReplaceAll(bytes.ReplaceAll(plain, []byte(`\/`), []byte(`/`)), []byte(`/`), []byte(`\/`))

	if !equalSign(got, c.sign(plain)) && !equalSign(got, c.sign(escaped)) {
		return CallbackResult{}, fmt.Errorf("cryptomus: notification failed: invalid signature")
	}

	f := payload.Fields
	status := f["status"]
	if status != "paid" && status != "paid_over" {
		return CallbackResult{}, fmt.Errorf("cryptomus: payment failed with status: %s", status)
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["order_id"],
		TransactionID: f["uuid"],
		Amount:        parseAmount(f["amount"]),
		Currency:      f["currency"],
		PaymentType:   f["payment_method"],
		Test:          f["is_test"] == "true" || f["is_test"] == "1",
		Extra: map[string]any{
			"payment_amount":     parseAmount(f["payment_amount"]),
			"payment_amount_usd": parseAmount(f["payment_amount_usd"]),
			"network":            f["network"],
			"txid":               f["txid"],
		},
	}, nil
}

// PaymentStatus looks a payment up by order id.
func (c *CryptomusAdapter) PaymentStatus(ctx context.Context, orderID string) (StatusResult, error) {
	body, err := json.Marshal(map[string]string{"order_id": orderID})
	if err != nil {
		return StatusResult{}, err
	}
	res, err := c.post(ctx, "/payment/info", body)
	if err != nil {
		return StatusResult{}, fmt.Errorf("cryptomus: payment status query: %w", err)
	}

	state := res.Get("payment_status").String()
	status := StatusPending
	switch state {
	case "paid", "paid_over":
		status = StatusSuccess
	case "fail", "cancel", "system_fail", "wrong_amount", "refund_paid":
		status = StatusFail
	}
	raw, _ := res.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       res.Get("order_id").String(),
		TransactionID: res.Get("uuid").String(),
		Amount:        res.Get("amount").Float(),
		Currency:      res.Get("currency").String(),
		Raw:           raw,
	}, nil
}

// TestWebhook asks Cryptomus to send a test notification for orderID to callbackURL.
func (c *CryptomusAdapter) TestWebhook(ctx context.Context, orderID, callbackURL, currency, network, status string) error {
	body, err := json.Marshal(map[string]string{
		"url_callback": callbackURL,
		"currency":     currency,
		"network":      network,
		"order_id":     orderID,
		"status":       firstNonEmpty(status, "paid"),
	})
	if err != nil {
		return err
	}
	if _, err := c.post(ctx, "/test-webhook/payment", body); err != nil {
		return fmt.Errorf("cryptomus: test webhook: %w", err)
	}
	c.logger.Infow("cryptomus test webhook requested", "order", orderID)
	return nil
}
