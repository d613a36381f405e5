package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type PaparaConfig struct {
	APIKey            string `env:"API_KEY" validate:"required"`
	MerchantSecretKey string `env:"MERCHANT_SECRET_KEY" validate:"required"`
	Test              bool   `env:"TEST" envDefault:"false"`
	BaseURL           string `env:"BASE_URL"`
}

// PaparaAdapter speaks the Papara merchant payments API.
type PaparaAdapter struct {
	cfg    PaparaConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewPaparaAdapter(settings Settings, deps Deps) (*PaparaAdapter, error) {
	var cfg PaparaConfig
	if err := decodeConfig("papara", settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://merchant-api.papara.com"
		if cfg.Test {
			cfg.BaseURL = "https://merchant-api.test.papara.com"
		}
	}
	return &PaparaAdapter{cfg: cfg, client: deps.client("papara"), logger: deps.logger()}, nil
}

var paparaCurrencies = map[string]int{"TRY": 0, "USD": 1, "EUR": 2}

func paparaCurrencyName(code string) string {
	for name, c := range paparaCurrencies {
		if fmt.Sprint(c) == code {
			return name
		}
	}
	return code
}

func (p *PaparaAdapter) header() http.Header {
	return http.Header{"ApiKey": {p.cfg.APIKey}}
}

// result unwraps the {succeeded, data, error} envelope.
func (p *PaparaAdapter) result(resp *httpclient.Response) (gjson.Result, error) {
	res := gjson.ParseBytes(resp.Body)
	if !resp.OK() || !res.Get("succeeded").Bool() {
		msg := firstNonEmpty(res.Get("error.message").String(), res.Get("message").String(), http.StatusText(resp.StatusCode))
		return res, fmt.Errorf("API error: %s", msg)
	}
	return res.Get("data"), nil
}

func (p *PaparaAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("papara", req, "OrderID", "Amount", "Currency", "Description", "CallbackURL", "SuccessURL"); err != nil {
		return PaymentResponse{}, err
	}
	currency, ok := paparaCurrencies[strings.ToUpper(req.Currency)]
	if !ok {
		return PaymentResponse{}, fmt.Errorf("papara: unsupported currency %s", req.Currency)
	}

	body := map[string]any{
		"amount":           req.Amount,
		"nameSurname":      firstNonEmpty(req.Buyer.FullName(), req.Name),
		"referenceId":      req.OrderID,
		"currency":         currency,
		"orderDescription": req.Description,
		"notificationUrl":  req.CallbackURL,
		"redirectUrl":      req.SuccessURL,
	}
	resp, err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/payments", body, p.header())
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("papara: payment creation error: %w", err)
	}
	data, err := p.result(resp)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("papara: payment creation error: %w", err)
	}

	return PaymentResponse{
		Status:        StatusSuccess,
		ID:            data.Get("id").String(),
		TransactionID: data.Get("id").String(),
		PaymentURL:    data.Get("paymentUrl").String(),
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
	}, nil
}

// HandleCallback trusts a notification only when status is 1 and the
// merchant secret key it carries matches ours.
func (p *PaparaAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	if f["status"] != "1" {
		return CallbackResult{}, fmt.Errorf("papara: %s", firstNonEmpty(f["ErrorMessage"], f["errorMessage"], "payment failed"))
	}
	if !equalSign(f["merchantSecretKey"], p.cfg.MerchantSecretKey) {
		return CallbackResult{}, fmt.Errorf("papara: invalid merchant secret key")
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["referenceId"],
		TransactionID: f["id"],
		Amount:        parseAmount(f["amount"]),
		Currency:      paparaCurrencyName(f["currency"]),
		PaymentType:   f["paymentMethod"],
		PaymentDate:   f["createdAt"],
	}, nil
}

// PaymentStatus fetches a payment by its Papara id.
func (p *PaparaAdapter) PaymentStatus(ctx context.Context, id string) (StatusResult, error) {
	resp, err := p.client.Get(ctx, p.cfg.BaseURL+"/payments?id="+url.QueryEscape(id), p.header())
	if err != nil {
		return StatusResult{}, fmt.Errorf("papara: payment status error: %w", err)
	}
	data, err := p.result(resp)
	if err != nil {
		return StatusResult{}, fmt.Errorf("papara: payment status error: %w", err)
	}

	// 0 pending, 1 completed, 2 refunded.
	state := data.Get("status").String()
	status := StatusPending
	switch state {
	case "1":
		status = StatusSuccess
	case "2":
		status = StatusFail
	}
	raw, _ := data.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       data.Get("referenceId").String(),
		TransactionID: data.Get("id").String(),
		Amount:        data.Get("amount").Float(),
		Currency:      paparaCurrencyName(data.Get("currency").String()),
		Raw:           raw,
	}, nil
}

// Account returns the merchant account summary.
func (p *PaparaAdapter) Account(ctx context.Context) (map[string]any, error) {
	resp, err := p.client.Get(ctx, p.cfg.BaseURL+"/account", p.header())
	if err != nil {
		return nil, fmt.Errorf("papara: account info error: %w", err)
	}
	data, err := p.result(resp)
	if err != nil {
		return nil, fmt.Errorf("papara: account info error: %w", err)
	}
	out, _ := data.Value().(map[string]any)
	return out, nil
}

// AccountLedgers lists ledger entries between two dates.
func (p *PaparaAdapter) AccountLedgers(ctx context.Context, startDate, endDate string, page, pageSize int) (map[string]any, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	body := map[string]any{"startDate": startDate, "endDate": endDate, "page": page, "pageSize": pageSize}
	resp, err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/account/ledgers", body, p.header())
	if err != nil {
		return nil, fmt.Errorf("papara: account ledger error: %w", err)
	}
	data, err := p.result(resp)
	if err != nil {
		return nil, fmt.Errorf("papara: account ledger error: %w", err)
	}
	out, _ := data.Value().(map[string]any)
	return out, nil
}
