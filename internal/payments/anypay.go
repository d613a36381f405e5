package payments

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type AnyPayConfig struct {
	MerchantID string   `env:"MERCHANT_ID" validate:"required"`
	SecretKey  string   `env:"SECRET_KEY" validate:"required"`
	APIID      string   `env:"API_ID"`
	APIKey     string   `env:"API_KEY"`
	AllowedIPs []string `env:"ALLOWED_IPS" envSeparator:","`
	BaseURL    string   `env:"BASE_URL" envDefault:"https://anypay.io"`
}

// AnyPayAdapter supports the signed merchant form and, when API
// credentials are configured, the create-payment API.
type AnyPayAdapter struct {
	cfg    AnyPayConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewAnyPayAdapter(settings Settings, deps Deps) (*AnyPayAdapter, error) {
	var cfg AnyPayConfig
	if err := decodeConfig("anypay", settings, &cfg); err != nil {
		return nil, err
	}
	return &AnyPayAdapter{cfg: cfg, client: deps.client("anypay"), logger: deps.logger()}, nil
}

var anypayForm = template.Must(template.New("anypay").Parse(
	`<form id="anypay" method="POST" action="{{.Action}}">` +
		`{{range $k, $v := .Fields}}<input type="hidden" name="{{$k}}" value="{{$v}}">{{end}}` +
		`</form><script>document.getElementById("anypay").submit();</script>`))

// api calls an API method. The sign is SHA-256 over method, API id, the
// method specific parts and the API key.
func (a *AnyPayAdapter) api(ctx context.Context, method string, form url.Values, signParts ...string) (gjson.Result, error) {
	if a.cfg.APIID == "" || a.cfg.APIKey == "" {
		return gjson.Result{}, fmt.Errorf("anypay: API_ID and API_KEY are required for %s", method)
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("sign", sha256Hex(method+a.cfg.APIID+strings.Join(signParts, "")+a.cfg.APIKey))

	resp, err := a.client.PostForm(ctx, a.cfg.BaseURL+"/api/"+method+"/"+url.PathEscape(a.cfg.APIID), form, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("anypay: %s: %w", method, err)
	}
	res := gjson.ParseBytes(resp.Body)
	if e := res.Get("error"); e.Exists() {
		return gjson.Result{}, fmt.Errorf("anypay: %s: %s (code %s)", method, e.Get("message").String(), e.Get("code").String())
	}
	if !resp.OK() || !res.Get("result").Exists() {
		return gjson.Result{}, fmt.Errorf("anypay: %s: unexpected response (http=%d)", method, resp.StatusCode)
	}
	return res.Get("result"), nil
}

// CreatePayment returns a signed form for the merchant page by default. The
// "mode" option selects "html" for a ready auto-submitting form or "api" for
// a server-side create-payment call.
func (a *AnyPayAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("anypay", req, "OrderID", "Amount", "Currency", "Description"); err != nil {
		return PaymentResponse{}, err
	}
	amount := formatAmount(req.Amount)

	if req.Option("mode", "form") == "api" {
		form := url.Values{
			"project_id":  {a.cfg.MerchantID},
			"pay_id":      {req.OrderID},
			"amount":      {amount},
			"currency":    {req.Currency},
			"desc":        {req.Description},
			"email":       {req.Email},
			"method":      {req.Method},
			"success_url": {req.SuccessURL},
			"fail_url":    {req.FailURL},
		}
		res, err := a.api(ctx, "create-payment", form,
			a.cfg.MerchantID, req.OrderID, amount, req.Currency, req.Description, req.Method)
		if err != nil {
			a.logger.Warnw("anypay payment creation failed", "order_id", req.OrderID, "error", err.Error())
			return PaymentResponse{Status: StatusFail, Message: err.Error(), OrderID: req.OrderID}, nil
		}
		return PaymentResponse{
			Status:        StatusSuccess,
			ID:            res.Get("transaction_id").String(),
			TransactionID: res.Get("transaction_id").String(),
			PaymentURL:    res.Get("payment_url").String(),
			OrderID:       firstNonEmpty(res.Get("pay_id").String(), req.OrderID),
			Amount:        req.Amount,
			Currency:      req.Currency,
		}, nil
	}

	fields := map[string]string{
		"merchant_id": a.cfg.MerchantID,
		"pay_id":      req.OrderID,
		"amount":      amount,
		"currency":    req.Currency,
		"desc":        req.Description,
		"method":      req.Method,
		"email":       req.Email,
		"success_url": req.SuccessURL,
		"fail_url":    req.FailURL,
		"sign": sha256Hex(strings.Join([]string{a.cfg.MerchantID, req.OrderID, amount, req.Currency,
			req.Description, req.SuccessURL, req.FailURL, a.cfg.SecretKey}, ":")),
	}
	out := PaymentResponse{
		Status:     StatusSuccess,
		PaymentURL: a.cfg.BaseURL + "/merchant",
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Data:       fields,
	}
	if req.Option("mode", "form") == "html" {
		var buf bytes.Buffer
		if err := anypayForm.Execute(&buf, map[string]any{"Action": out.PaymentURL, "Fields": fields}); err != nil {
			return PaymentResponse{}, fmt.Errorf("anypay: render form: %w", err)
		}
		out.HTML = buf.String()
	}
	return out, nil
}

// HandleCallback verifies sign = sha256(currency:amount:pay_id:merchant_id:status:secret).
func (a *AnyPayAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	if f["pay_id"] == "" {
		return CallbackResult{}, fmt.Errorf("anypay: missing required callback parameters")
	}
	if len(a.cfg.AllowedIPs) > 0 && !slices.Contains(a.cfg.AllowedIPs, payload.RemoteIP) {
		return CallbackResult{}, fmt.Errorf("anypay: notification from unexpected address %s", payload.RemoteIP)
	}
	want := sha256Hex(strings.Join([]string{f["currency"], f["amount"], f["pay_id"], a.cfg.MerchantID, f["status"], a.cfg.SecretKey}, ":"))
	if !equalSign(f["sign"], want) {
		return CallbackResult{}, fmt.Errorf("anypay: invalid notification signature")
	}
	if f["status"] != "paid" {
		return CallbackResult{}, fmt.Errorf("anypay: payment failed with status: %s", f["status"])
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["pay_id"],
		TransactionID: f["transaction_id"],
		Amount:        parseAmount(f["amount"]),
		Currency:      f["currency"],
		PaymentType:   f["method"],
		Test:          f["test"] == "1",
		Extra: map[string]any{
			"profit": parseAmount(f["profit"]),
			"email":  f["email"],
		},
	}, nil
}

// PaymentStatus looks a payment up by its AnyPay transaction id.
func (a *AnyPayAdapter) PaymentStatus(ctx context.Context, transactionID string) (StatusResult, error) {
	res, err := a.PaymentInfo(ctx, transactionID)
	if err != nil {
		return StatusResult{}, err
	}
	state := res.Get("status").String()
	status := StatusPending
	switch state {
	case "paid":
		status = StatusSuccess
	case "canceled", "expired", "refund", "error":
		status = StatusFail
	}
	raw, _ := res.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       res.Get("pay_id").String(),
		TransactionID: firstNonEmpty(res.Get("transaction_id").String(), transactionID),
		Amount:        res.Get("amount").Float(),
		Currency:      res.Get("currency").String(),
		Raw:           raw,
	}, nil
}

// PaymentInfo returns the single payment matching transactionID.
func (a *AnyPayAdapter) PaymentInfo(ctx context.Context, transactionID string) (gjson.Result, error) {
	res, err := a.api(ctx, "payments", url.Values{"project_id": {a.cfg.MerchantID}, "trans_id": {transactionID}}, a.cfg.MerchantID)
	if err != nil {
		return gjson.Result{}, err
	}
	var found gjson.Result
	res.Get("payments").ForEach(func(_, v gjson.Result) bool {
		found = v
		return false
	})
	if !found.Exists() {
		return gjson.Result{}, fmt.Errorf("anypay: payment not found")
	}
	return found, nil
}

func (a *AnyPayAdapter) Balance(ctx context.Context) (float64, error) {
	res, err := a.api(ctx, "balance", nil)
	if err != nil {
		return 0, err
	}
	return res.Get("balance").Float(), nil
}

// Rates returns the current conversion rates keyed by currency pair.
func (a *AnyPayAdapter) Rates(ctx context.Context) (map[string]any, error) {
	res, err := a.api(ctx, "rates", nil)
	if err != nil {
		return nil, err
	}
	out, _ := res.Value().(map[string]any)
	return out, nil
}

func (a *AnyPayAdapter) Commissions(ctx context.Context) (map[string]any, error) {
	res, err := a.api(ctx, "commissions", url.Values{"project_id": {a.cfg.MerchantID}}, a.cfg.MerchantID)
	if err != nil {
		return nil, err
	}
	out, _ := res.Value().(map[string]any)
	return out, nil
}

// NotificationIPs lists the addresses AnyPay sends notifications from.
func (a *AnyPayAdapter) NotificationIPs(ctx context.Context) ([]string, error) {
	res, err := a.api(ctx, "ip-notification", nil)
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, ip := range res.Get("ip").Array() {
		ips = append(ips, ip.String())
	}
	return ips, nil
}

type Payout struct {
	PayoutID   string  `json:"payoutId" validate:"required"`
	PayoutType string  `json:"payoutType" validate:"required"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Wallet     string  `json:"wallet" validate:"required"`
}

func (a *AnyPayAdapter) CreatePayout(ctx context.Context, p Payout) (map[string]any, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("anypay: %w", validationError(err))
	}
	amount := formatAmount(p.Amount)
	form := url.Values{
		"payout_id":   {p.PayoutID},
		"payout_type": {p.PayoutType},
		"amount":      {amount},
		"wallet":      {p.Wallet},
	}
	res, err := a.api(ctx, "create-payout", form, p.PayoutID, p.PayoutType, amount, p.Wallet)
	if err != nil {
		return nil, err
	}
	out, _ := res.Value().(map[string]any)
	return out, nil
}

func (a *AnyPayAdapter) Payouts(ctx context.Context, payoutID string) (map[string]any, error) {
	form := url.Values{}
	if payoutID != "" {
		form.Set("payout_id", payoutID)
	}
	res, err := a.api(ctx, "payouts", form)
	if err != nil {
		return nil, err
	}
	out, _ := res.Value().(map[string]any)
	return out, nil
}
