package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type BufPayConfig struct {
	AppID     string `env:"APP_ID" validate:"required"`
	AppSecret string `env:"APP_SECRET" validate:"required"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://bufpay.com/api"`
}

// BufPayAdapter creates QR payments through the BufPay pay API.
type BufPayAdapter struct {
	cfg    BufPayConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewBufPayAdapter(settings Settings, deps Deps) (*BufPayAdapter, error) {
	var cfg BufPayConfig
	if err := decodeConfig("bufpay", settings, &cfg); err != nil {
		return nil, err
	}
	return &BufPayAdapter{cfg: cfg, client: deps.client("bufpay"), logger: deps.logger()}, nil
}

// sign is the upper-case MD5 of the concatenated values.
func (b *BufPayAdapter) sign(parts ...string) string {
	return strings.ToUpper(md5Hex(strings.Join(parts, "")))
}

func (b *BufPayAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("bufpay", req, "Name", "Method", "Amount", "OrderID", "CustomerID", "CallbackURL"); err != nil {
		return PaymentResponse{}, err
	}

	price := formatAmount(req.Amount)
	form := url.Values{
		"name":         {req.Name},
		"pay_type":     {req.Method},
		"price":        {price},
		"order_id":     {req.OrderID},
		"order_uid":    {req.CustomerID},
		"notify_url":   {req.CallbackURL},
		"return_url":   {req.SuccessURL},
		"feedback_url": {req.FailURL},
		"sign": {b.sign(req.Name, req.Method, price, req.OrderID, req.CustomerID,
			req.CallbackURL, req.SuccessURL, req.FailURL, b.cfg.AppSecret)},
	}

	endpoint := fmt.Sprintf("%s/pay/%s?format=json", b.cfg.BaseURL, url.PathEscape(b.cfg.AppID))
	resp, err := b.client.PostForm(ctx, endpoint, form, nil)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("bufpay: pay request: %w", err)
	}
	if len(resp.Body) == 0 {
		return PaymentResponse{}, fmt.Errorf("bufpay: empty response received from API")
	}
	if !resp.OK() {
		return PaymentResponse{}, fmt.Errorf("bufpay: API error: %s", string(resp.Body))
	}

	res := gjson.ParseBytes(resp.Body)
	if !res.IsObject() {
		return PaymentResponse{}, fmt.Errorf("bufpay: unexpected response: %s", string(resp.Body))
	}
	if status := res.Get("status").String(); status != "success" && status != "ok" {
		return PaymentResponse{Status: StatusFail, Message: status, OrderID: req.OrderID}, nil
	}

	aoid := res.Get("aoid").String()
	b.logger.Debugw("bufpay payment created", "aoid", aoid)
	return PaymentResponse{
		Status:        StatusSuccess,
		ID:            aoid,
		TransactionID: aoid,
		OrderID:       req.OrderID,
		Amount:        res.Get("price").Float(),
		Currency:      req.Currency,
		QR:            res.Get("qr").String(),
		ExpiresAt:     res.Get("expires_in").String(),
		Extra: map[string]any{
			"pay_type":     res.Get("pay_type").String(),
			"qr_price":     res.Get("qr_price").String(),
			"cid":          res.Get("cid").String(),
			"return_url":   res.Get("return_url").String(),
			"feedback_url": res.Get("feedback_url").String(),
		},
	}, nil
}

// HandleCallback verifies sign = MD5(aoid+order_id+order_uid+price+pay_price+secret).
func (b *BufPayAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	for _, k := range []string{"aoid", "order_id", "order_uid", "price", "pay_price", "sign"} {
		if f[k] == "" {
			b.logger.Debugw("bufpay callback missing field", "field", k)
			return CallbackResult{}, fmt.Errorf("bufpay: notification failed: invalid signature")
		}
	}
	want := b.sign(f["aoid"], f["order_id"], f["order_uid"], f["price"], f["pay_price"], b.cfg.AppSecret)
	if !equalSign(f["sign"], want) {
		return CallbackResult{}, fmt.Errorf("bufpay: notification failed: invalid signature")
	}
	if f["status"] != "success" {
		return CallbackResult{}, fmt.Errorf("bufpay: payment failed with status: %s", f["status"])
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["order_id"],
		TransactionID: f["aoid"],
		Amount:        parseAmount(f["pay_price"]),
		Extra: map[string]any{
			"original_amount": parseAmount(f["price"]),
			"order_uid":       f["order_uid"],
		},
	}, nil
}

// PaymentStatus queries a payment by its aoid.
func (b *BufPayAdapter) PaymentStatus(ctx context.Context, aoid string) (StatusResult, error) {
	if aoid == "" {
		return StatusResult{}, fmt.Errorf("bufpay: transaction id (aoid) is required")
	}
	resp, err := b.client.Get(ctx, b.cfg.BaseURL+"/query/"+url.PathEscape(aoid), nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("bufpay: payment query failed: %w", err)
	}
	raw := map[string]any{}
	if err := resp.JSON(&raw); err != nil {
		return StatusResult{}, fmt.Errorf("bufpay: payment query failed: %w", err)
	}

	state, _ := raw["status"].(string)
	status := StatusPending
	switch state {
	case "success", "payed", "paid":
		status = StatusSuccess
	case "fail", "expire", "expired":
		status = StatusFail
	}
	orderID, _ := raw["order_id"].(string)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       orderID,
		TransactionID: aoid,
		Raw:           raw,
	}, nil
}
