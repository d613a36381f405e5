package payments

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

type PayeerConfig struct {
	Shop    string `env:"SHOP" validate:"required"`
	Key     string `env:"KEY" validate:"required"`
	BaseURL string `env:"BASE_URL" envDefault:"https://payeer.com"`
}

// PayeerAdapter builds signed merchant redirect URLs. No API call is needed
// to create a payment.
type PayeerAdapter struct {
	cfg    PayeerConfig
	logger *zap.SugaredLogger
}

func NewPayeerAdapter(settings Settings, deps Deps) (*PayeerAdapter, error) {
	var cfg PayeerConfig
	if err := decodeConfig("payeer", settings, &cfg); err != nil {
		return nil, err
	}
	return &PayeerAdapter{cfg: cfg, logger: deps.logger()}, nil
}

func (p *PayeerAdapter) sign(parts ...string) string {
	return strings.ToUpper(sha256Hex(strings.Join(parts, ":")))
}

func (p *PayeerAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("payeer", req, "OrderID", "Amount", "Currency", "Description"); err != nil {
		return PaymentResponse{}, err
	}

	amount := formatAmount(req.Amount)
	desc := base64.StdEncoding.EncodeToString([]byte(req.Description))
	q := url.Values{
		"m_shop":    {p.cfg.Shop},
		"m_orderid": {req.OrderID},
		"m_amount":  {amount},
		"m_curr":    {req.Currency},
		"m_desc":    {desc},
		"m_sign":    {p.sign(p.cfg.Shop, req.OrderID, amount, req.Currency, desc, p.cfg.Key)},
		"lang":      {firstNonEmpty(req.Lang, "en")},
	}

	return PaymentResponse{
		Status:     StatusSuccess,
		PaymentURL: p.cfg.BaseURL + "/merchant/?" + q.Encode(),
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}, nil
}

// HandleCallback verifies m_sign over the ten m_* status fields, m_params
// when present, and the secret key.
func (p *PayeerAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	parts := []string{
		f["m_operation_id"],
		f["m_operation_ps"],
		f["m_operation_date"],
		f["m_operation_pay_date"],
		f["m_shop"],
		f["m_orderid"],
		f["m_amount"],
		f["m_curr"],
		f["m_desc"],
		f["m_status"],
	}
	if f["m_params"] != "" {
		parts = append(parts, f["m_params"])
	}
	parts = append(parts, p.cfg.Key)

	if !equalSign(f["m_sign"], p.sign(parts...)) || f["m_status"] != "success" {
		p.logger.Debugw("payeer callback rejected", "order", f["m_orderid"], "status", f["m_status"])
		return CallbackResult{}, fmt.Errorf("payeer: payment validation failed")
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["m_orderid"],
		TransactionID: f["m_operation_id"],
		Amount:        parseAmount(f["m_amount"]),
		Currency:      f["m_curr"],
		PaymentDate:   f["m_operation_pay_date"],
	}, nil
}

// Acknowledge answers with "<orderid>|success" as Payeer requires.
func (p *PayeerAdapter) Acknowledge(result CallbackResult) string {
	return result.OrderID + "|success"
}
