package payments

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type FedaPayConfig struct {
	APIKey        string `env:"API_KEY" validate:"required"`
	Environment   string `env:"ENVIRONMENT" envDefault:"sandbox" validate:"oneof=sandbox live"`
	AccountID     string `env:"ACCOUNT_ID"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	BaseURL       string `env:"BASE_URL"`
}

// webhookTolerance bounds the clock skew of a signed FedaPay webhook, in
// either direction.
const webhookTolerance = 5 * time.Minute

// FedaPayAdapter creates FedaPay transactions and hands out their checkout token.
type FedaPayAdapter struct {
	cfg    FedaPayConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewFedaPayAdapter(settings Settings, deps Deps) (*FedaPayAdapter, error) {
	var cfg FedaPayConfig
	if err := decodeConfig("fedapay", settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sandbox-api.fedapay.com"
		if cfg.Environment == "live" {
			cfg.BaseURL = "https://api.fedapay.com"
		}
	}
	return &FedaPayAdapter{cfg: cfg, client: deps.client("fedapay"), logger: deps.logger(), now: time.Now}, nil
}

func (f *FedaPayAdapter) header() http.Header {
	h := http.Header{"Authorization": {"Bearer " + f.cfg.APIKey}}
	if f.cfg.AccountID != "" {
		h.Set("FedaPay-Account", f.cfg.AccountID)
	}
	return h
}

// entity unwraps the {"v1/<name>": {...}} envelope FedaPay puts around objects.
func entity(body []byte, name string) gjson.Result {
	res := gjson.ParseBytes(body)
	if v := res.Get("v1/" + name); v.Exists() {
		return v
	}
	return res
}

func (f *FedaPayAdapter) apiError(resp *httpclient.Response) error {
	res := gjson.ParseBytes(resp.Body)
	msg := firstNonEmpty(res.Get("message").String(), http.StatusText(resp.StatusCode))
	return fmt.Errorf("API error (http=%d): %s", resp.StatusCode, msg)
}

// CreatePayment creates a transaction and generates its payment token. Any
// failure after validation is reported as a failed payment.
func (f *FedaPayAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("fedapay", req, "Amount", "Currency", "Description"); err != nil {
		return PaymentResponse{}, err
	}

	tx := map[string]any{
		"description":  req.Description,
		"amount":       req.Amount,
		"currency":     map[string]string{"iso": strings.ToUpper(req.Currency)},
		"callback_url": req.CallbackURL,
		"reference":    firstNonEmpty(req.OrderID, "order-"+strconv.FormatInt(time.Now().UnixMilli(), 10)),
	}
	if req.Method != "" {
		tx["mode"] = req.Method
	}
	if req.Email != "" || req.Buyer.FirstName != "" || req.Buyer.LastName != "" || req.Phone != "" {
		customer := map[string]any{
			"email":     req.Email,
			"firstname": firstNonEmpty(req.Buyer.FirstName, req.Name),
			"lastname":  req.Buyer.LastName,
		}
		if req.Phone != "" {
			customer["phone_number"] = map[string]string{
				"number":  req.Phone,
				"country": firstNonEmpty(req.Buyer.PhoneCountry, "BJ"),
			}
		}
		tx["customer"] = customer
	}

	resp, err := f.client.PostJSON(ctx, f.cfg.BaseURL+"/v1/transactions", tx, f.header())
	if err != nil {
		return f.failed(req, err), nil
	}
	if !resp.OK() {
		return f.failed(req, f.apiError(resp)), nil
	}
	created := entity(resp.Body, "transaction")
	id := created.Get("id").String()

	tokenBody := map[string]string{
		"return_url": req.SuccessURL,
		"cancel_url": firstNonEmpty(req.CancelURL, req.FailURL),
	}
	resp, err = f.client.PostJSON(ctx, f.cfg.BaseURL+"/v1/transactions/"+url.PathEscape(id)+"/token", tokenBody, f.header())
	if err != nil {
		return f.failed(req, err), nil
	}
	if !resp.OK() {
		return f.failed(req, f.apiError(resp)), nil
	}
	token := gjson.ParseBytes(resp.Body)

	return PaymentResponse{
		Status:        StatusSuccess,
		ID:            id,
		TransactionID: id,
		OrderID:       created.Get("reference").String(),
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
		PaymentURL:    token.Get("url").String(),
		Token:         token.Get("token").String(),
	}, nil
}

func (f *FedaPayAdapter) failed(req PaymentRequest, err error) PaymentResponse {
	f.logger.Warnw("fedapay payment creation failed", "order_id", req.OrderID, "error", err.Error())
	return PaymentResponse{Status: StatusFail, Message: err.Error(), OrderID: req.OrderID}
}

// verifySignature checks an X-FEDAPAY-SIGNATURE header of the form
// "t=<unix>,s=<hex hmac>" against HMAC-SHA256(secret, t + "." + body).
func (f *FedaPayAdapter) verifySignature(header string, body []byte) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "s":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("fedapay: unable to extract timestamp and signatures from header")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("fedapay: invalid signature timestamp")
	}
	if skew := f.now().Sub(time.Unix(unix, 0)); skew > webhookTolerance || skew < -webhookTolerance {
		return fmt.Errorf("fedapay: signature timestamp outside the tolerance zone")
	}

	want := hex.EncodeToString(hmacSHA256(f.cfg.WebhookSecret, ts+"."+string(body)))
	for _, s := range sigs {
		if equalSign(s, want) {
			return nil
		}
	}
	return fmt.Errorf("fedapay: invalid webhook signature")
}

// HandleCallback re-reads the transaction referenced by the notification
// and accepts it only when FedaPay reports it approved.
func (f *FedaPayAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	if f.cfg.WebhookSecret != "" {
		if err := f.verifySignature(payload.Header.Get("X-FEDAPAY-SIGNATURE"), payload.Raw); err != nil {
			return CallbackResult{}, err
		}
	}

	id := payload.First("id", "transaction_id")
	if id == "" {
		id = gjson.Get(payload.Fields["entity"], "id").String()
	}
	if id == "" {
		return CallbackResult{}, fmt.Errorf("fedapay: invalid callback data: missing transaction ID")
	}

	tx, err := f.transaction(ctx, id)
	if err != nil {
		return CallbackResult{}, err
	}
	if state := tx.Get("status").String(); state != "approved" {
		return CallbackResult{}, fmt.Errorf("fedapay: payment failed with status: %s", firstNonEmpty(state, "unknown"))
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       tx.Get("reference").String(),
		TransactionID: tx.Get("id").String(),
		Amount:        tx.Get("amount").Float(),
		Currency:      tx.Get("currency.iso").String(),
		PaymentType:   firstNonEmpty(tx.Get("mode").String(), "unknown"),
		PaymentDate:   firstNonEmpty(tx.Get("approved_at").String(), tx.Get("updated_at").String()),
	}, nil
}

func (f *FedaPayAdapter) transaction(ctx context.Context, id string) (gjson.Result, error) {
	resp, err := f.client.Get(ctx, f.cfg.BaseURL+"/v1/transactions/"+url.PathEscape(id), f.header())
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fedapay: retrieve transaction: %w", err)
	}
	if !resp.OK() {
		return gjson.Result{}, fmt.Errorf("fedapay: %w", f.apiError(resp))
	}
	return entity(resp.Body, "transaction"), nil
}

func (f *FedaPayAdapter) PaymentStatus(ctx context.Context, id string) (StatusResult, error) {
	tx, err := f.transaction(ctx, id)
	if err != nil {
		return StatusResult{}, err
	}
	state := tx.Get("status").String()
	status := StatusPending
	switch state {
	case "approved", "transferred":
		status = StatusSuccess
	case "declined", "canceled", "refunded", "expired":
		status = StatusFail
	}
	raw, _ := tx.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       tx.Get("reference").String(),
		TransactionID: tx.Get("id").String(),
		Amount:        tx.Get("amount").Float(),
		Currency:      tx.Get("currency.iso").String(),
		Raw:           raw,
	}, nil
}

// ListTransactions pages through transactions; params are passed as query
// string filters such as page or per_page.
func (f *FedaPayAdapter) ListTransactions(ctx context.Context, params url.Values) ([]map[string]any, error) {
	endpoint := f.cfg.BaseURL + "/v1/transactions"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	resp, err := f.client.Get(ctx, endpoint, f.header())
	if err != nil {
		return nil, fmt.Errorf("fedapay: list transactions: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fedapay: %w", f.apiError(resp))
	}
	var out []map[string]any
	for _, tx := range entity(resp.Body, "transactions").Array() {
		if m, ok := tx.Value().(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}
