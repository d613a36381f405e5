package payments

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type PayTRConfig struct {
	MerchantID   string `env:"MERCHANT_ID" validate:"required"`
	MerchantKey  string `env:"MERCHANT_KEY" validate:"required"`
	MerchantSalt string `env:"MERCHANT_SALT" validate:"required"`
	BaseURL      string `env:"BASE_URL" envDefault:"https://www.paytr.com"`
}

// PayTRAdapter creates PayTR payment links and verifies their notifications.
type PayTRAdapter struct {
	cfg    PayTRConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewPayTRAdapter(settings Settings, deps Deps) (*PayTRAdapter, error) {
	var cfg PayTRConfig
	if err := decodeConfig("paytr", settings, &cfg); err != nil {
		return nil, err
	}
	return &PayTRAdapter{cfg: cfg, client: deps.client("paytr"), logger: deps.logger()}, nil
}

func (p *PayTRAdapter) token(parts ...string) string {
	return base64.StdEncoding.EncodeToString(hmacSHA256(p.cfg.MerchantKey, strings.Join(parts, "")))
}

func (p *PayTRAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("paytr", req, "Name", "Amount", "Currency", "MaxInstallment", "ExpiryDate"); err != nil {
		return PaymentResponse{}, err
	}

	price := strconv.FormatInt(toMinor(req.Amount), 10)
	maxInstallment := strconv.Itoa(req.MaxInstallment)
	linkType := req.Option("link_type", "product")
	lang := firstNonEmpty(req.Lang, "tr")
	minCount := req.Option("min_count", "1")

	form := url.Values{
		"merchant_id":     {p.cfg.MerchantID},
		"name":            {req.Name},
		"price":           {price},
		"currency":        {req.Currency},
		"max_installment": {maxInstallment},
		"link_type":       {linkType},
		"lang":            {lang},
		"min_count":       {minCount},
		"paytr_token":     {p.token(req.Name, price, req.Currency, maxInstallment, linkType, lang, minCount, p.cfg.MerchantSalt)},
		"expiry_date":     {req.ExpiryDate},
		"get_qr":          {"1"},
		"max_count":       {req.Option("max_count", "1")},
		"email":           {req.Email},
		"callback_link":   {req.CallbackURL},
		"callback_id":     {req.OrderID},
	}

	resp, err := p.client.PostForm(ctx, p.cfg.BaseURL+"/odeme/api/link/create", form, nil)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("paytr: link create request: %w", err)
	}

	var res struct {
		Status string `json:"status"`
		ID     string `json:"id"`
		Link   string `json:"link"`
		QR     string `json:"base64_qr"`
		Reason string `json:"reason"`
	}
	if err := resp.JSON(&res); err != nil {
		return PaymentResponse{}, fmt.Errorf("paytr: %w", err)
	}
	if res.Status != "success" {
		return PaymentResponse{}, fmt.Errorf("paytr: API error: %s", firstNonEmpty(res.Reason, "unknown error occurred"))
	}

	p.logger.Debugw("paytr link created", "id", res.ID)
	return PaymentResponse{
		Status:        StatusSuccess,
		PaymentURL:    res.Link,
		ID:            res.ID,
		TransactionID: res.ID,
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		QR:            res.QR,
	}, nil
}

// HandleCallback checks the notification hash, computed as
// base64(HMAC-SHA256(key, callback_id+merchant_oid+salt+status+total_amount)).
func (p *PayTRAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	want := p.token(f["callback_id"], f["merchant_oid"], p.cfg.MerchantSalt, f["status"], f["total_amount"])
	if !equalSign(f["hash"], want) {
		return CallbackResult{}, fmt.Errorf("paytr: notification failed: bad hash")
	}
	if f["status"] != "success" {
		return CallbackResult{}, fmt.Errorf("paytr: payment failed")
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["callback_id"],
		TransactionID: f["merchant_oid"],
		Amount:        parseAmount(f["total_amount"]) / 100,
		Currency:      f["currency"],
		PaymentType:   f["payment_type"],
		Test:          f["test_mode"] == "1",
		Extra:         map[string]any{"merchant_oid": f["merchant_oid"]},
	}, nil
}

// Acknowledge returns the plain "OK" PayTR expects, otherwise it resends.
func (p *PayTRAdapter) Acknowledge(CallbackResult) string {
	return "OK"
}
