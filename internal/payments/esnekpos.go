package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type EsnekPosConfig struct {
	Merchant    string `env:"MERCHANT" validate:"required"`
	MerchantKey string `env:"MERCHANT_KEY" validate:"required"`
	TestMode    bool   `env:"TEST_MODE" envDefault:"false"`
	BaseURL     string `env:"BASE_URL"`
}

const (
	esnekCommonPath      = "/api/pay/CommonPaymentDealer"
	esnek3DPath          = "/api/pay/EYV3DPay"
	esnekBKMPath         = "/api/pay/BKMExpressPay"
	esnekRecurringPath   = "/api/recurring/CreateRecurringPayment"
	esnekQueryPath       = "/api/services/ProcessQuery"
	esnekRefundPath      = "/api/services/Refund"
	esnekInstallmentPath = "/api/services/InstallmentOptions"
	esnekBinPath         = "/api/services/BinQuery"
	esnekBalancePath     = "/api/services/DealerBalance"
)

// EsnekPosAdapter covers the hosted page, 3D card, BKM Express and
// recurring flows of EsnekPOS.
type EsnekPosAdapter struct {
	cfg    EsnekPosConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewEsnekPosAdapter(settings Settings, deps Deps) (*EsnekPosAdapter, error) {
	var cfg EsnekPosConfig
	if err := decodeConfig("esnekpos", settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://posservice.esnekpos.com"
		if cfg.TestMode {
			cfg.BaseURL = "https://posservicetest.esnekpos.com"
		}
	}
	return &EsnekPosAdapter{cfg: cfg, client: deps.client("esnekpos"), logger: deps.logger()}, nil
}

func (e *EsnekPosAdapter) post(ctx context.Context, path string, body map[string]any) (gjson.Result, error) {
	resp, err := e.client.PostJSON(ctx, e.cfg.BaseURL+path, body, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.ParseBytes(resp.Body)
	if !res.IsObject() {
		return res, fmt.Errorf("unexpected response (http=%d)", resp.StatusCode)
	}
	return res, nil
}

// credentials is the merchant block every service call carries.
func (e *EsnekPosAdapter) credentials() map[string]any {
	return map[string]any{"MERCHANT": e.cfg.Merchant, "MERCHANT_KEY": e.cfg.MerchantKey}
}

func esnekOK(res gjson.Result) bool {
	return res.Get("STATUS").String() == "SUCCESS" || res.Get("success").Bool()
}

func esnekMessage(res gjson.Result, def string) string {
	return firstNonEmpty(res.Get("RETURN_MESSAGE").String(), res.Get("message").String(), res.Get("errorMessage").String(), def)
}

func (e *EsnekPosAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	fields := []string{"OrderID", "Amount", "Currency", "CallbackURL"}
	if req.Card != nil || req.Recurring != nil {
		fields = append(fields, "Card")
	}
	if err := requireFields("esnekpos", req, fields...); err != nil {
		return PaymentResponse{}, err
	}
	if req.Recurring != nil && req.Card == nil {
		return PaymentResponse{}, fmt.Errorf("esnekpos: missing required field: card")
	}

	amount := formatAmount(req.Amount)
	config := e.credentials()
	config["ORDER_REF_NUMBER"] = req.OrderID
	config["ORDER_AMOUNT"] = amount
	config["PRICES_CURRENCY"] = firstNonEmpty(req.Currency, "TRY")
	config["BACK_URL"] = req.CallbackURL
	config["LOCALE"] = firstNonEmpty(req.Lang, "tr")

	b := req.Buyer
	body := map[string]any{
		"Config": config,
		"Customer": map[string]string{
			"FIRST_NAME": firstNonEmpty(b.FirstName, "Müşteri"),
			"LAST_NAME":  firstNonEmpty(b.LastName, "Adı"),
			"MAIL":       firstNonEmpty(req.Email, "musteri@example.com"),
			"PHONE":      req.Phone,
			"CITY":       b.City,
			"STATE":      b.State,
			"ADDRESS":    b.Address,
		},
		"Product": []map[string]string{{
			"PRODUCT_ID":          req.Option("product_id", "1"),
			"PRODUCT_NAME":        firstNonEmpty(req.Name, req.Description, "Ürün Adı"),
			"PRODUCT_CATEGORY":    firstNonEmpty(req.Category, "Diğer"),
			"PRODUCT_DESCRIPTION": firstNonEmpty(req.Description, "Ürün Açıklaması"),
			"PRODUCT_AMOUNT":      amount,
		}},
	}

	path := esnekCommonPath
	switch {
	case strings.EqualFold(req.Method, "bkm"):
		path = esnekBKMPath
	case req.Recurring != nil:
		path = esnekRecurringPath
		r := req.Recurring
		config["REPEAT"] = firstNonEmpty(r.Repeat, "1")
		config["TRIES_COUNT"] = firstNonEmpty(r.TriesCount, "3")
		config["START_DATE"] = firstNonEmpty(r.StartDate, time.Now().AddDate(0, 0, 1).Format(time.DateOnly))
		body["Cards"] = []map[string]string{{
			"CC_NUMBER": req.Card.Number,
			"EXP_MONTH": req.Card.ExpireMonth,
			"EXP_YEAR":  req.Card.ExpireYear,
			"CC_CVV":    req.Card.CVV,
			"CC_OWNER":  req.Card.Owner,
		}}
	case req.Card != nil:
		path = esnek3DPath
		body["CreditCard"] = map[string]string{
			"CC_NUMBER":          req.Card.Number,
			"EXP_MONTH":          req.Card.ExpireMonth,
			"EXP_YEAR":           req.Card.ExpireYear,
			"CC_CVV":             req.Card.CVV,
			"CC_OWNER":           req.Card.Owner,
			"INSTALLMENT_NUMBER": firstNonEmpty(req.Card.Installment, "1"),
		}
	}

	res, err := e.post(ctx, path, body)
	if err != nil {
		e.logger.Warnw("esnekpos payment creation failed", "order_id", req.OrderID, "error", err.Error())
		return PaymentResponse{Status: StatusFail, Message: err.Error(), OrderID: req.OrderID}, nil
	}
	if res.Get("STATUS").String() != "SUCCESS" {
		return PaymentResponse{
			Status:  StatusFail,
			Message: esnekMessage(res, "payment could not be created"),
			OrderID: req.OrderID,
			Extra:   map[string]any{"return_code": res.Get("RETURN_CODE").String()},
		}, nil
	}

	ref := firstNonEmpty(res.Get("ORDER_REF_NUMBER").String(), req.OrderID)
	return PaymentResponse{
		Status:        StatusSuccess,
		ID:            firstNonEmpty(res.Get("REFNO").String(), ref),
		TransactionID: ref,
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      firstNonEmpty(req.Currency, "TRY"),
		PaymentURL:    res.Get("URL_3DS").String(),
		HTML:          res.Get("HTML_3DS").String(),
	}, nil
}

// HandleCallback accepts a success notification only after a process query
// for the same order reference confirms it.
func (e *EsnekPosAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	if f["STATUS"] != "SUCCESS" && f["result"] != "success" && f["success"] != "true" {
		return CallbackResult{}, fmt.Errorf("esnekpos: payment failed with status: %s", firstNonEmpty(f["STATUS"], f["status"], "unknown"))
	}
	ref := payload.First("ORDER_REF_NUMBER", "orderRefNumber")
	if ref == "" {
		return CallbackResult{}, fmt.Errorf("esnekpos: missing order reference number")
	}

	status, err := e.PaymentStatus(ctx, ref)
	if err != nil {
		return CallbackResult{}, err
	}
	if status.Status != StatusSuccess {
		return CallbackResult{}, fmt.Errorf("esnekpos: transaction verification failed")
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       ref,
		TransactionID: firstNonEmpty(payload.First("REFNO", "transactionId"), ref),
		Amount:        parseAmount(payload.First("AMOUNT", "amount", "ORDER_AMOUNT")),
		Currency:      firstNonEmpty(payload.First("currency", "PRICES_CURRENCY"), "TRY"),
		PaymentType:   firstNonEmpty(f["paymentType"], "creditcard"),
		PaymentDate:   firstNonEmpty(payload.First("DATE", "date"), time.Now().UTC().Format(time.RFC3339)),
	}, nil
}

// esnekPayment picks the entry of PAYMENT_LIST that decides the order's
// state. STATUS on the envelope only reports that the query ran, so an empty
// list or an unsuccessful query is a failure.
func esnekPayment(res gjson.Result) (gjson.Result, Status) {
	if !esnekOK(res) {
		return res.Get("PAYMENT_LIST.0"), StatusFail
	}
	var chosen gjson.Result
	status := StatusFail
	res.Get("PAYMENT_LIST").ForEach(func(_, entry gjson.Result) bool {
		if !chosen.Exists() {
			chosen = entry
		}
		switch strings.ToUpper(entry.Get("STATUS").String()) {
		case "SUCCESS":
			chosen, status = entry, StatusSuccess
			return false
		case "WAITING", "PENDING":
			chosen, status = entry, StatusPending
		}
		return true
	})
	return chosen, status
}

// PaymentStatus queries the transaction detail for an order reference.
func (e *EsnekPosAdapter) PaymentStatus(ctx context.Context, orderRef string) (StatusResult, error) {
	body := e.credentials()
	body["ORDER_REF_NUMBER"] = orderRef
	res, err := e.post(ctx, esnekQueryPath, body)
	if err != nil {
		return StatusResult{}, fmt.Errorf("esnekpos: payment status: %w", err)
	}

	payment, status := esnekPayment(res)
	raw, _ := res.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: firstNonEmpty(payment.Get("STATUS_NAME").String(), payment.Get("STATUS").String(), res.Get("STATUS").String()),
		OrderID:       orderRef,
		TransactionID: payment.Get("PAYMENT_ID").String(),
		Amount:        parseAmount(payment.Get("AMOUNT").String()),
		Currency:      payment.Get("CURRENCY").String(),
		Raw:           raw,
	}, nil
}

// RefundPayment refunds an order; a zero amount refunds it in full.
func (e *EsnekPosAdapter) RefundPayment(ctx context.Context, req RefundRequest) (RefundResult, error) {
	body := e.credentials()
	body["ORDER_REF_NUMBER"] = req.PaymentID
	body["SYNC_WITH_POS"] = true
	if req.Amount > 0 {
		body["AMOUNT"] = formatAmount(req.Amount)
	}
	res, err := e.post(ctx, esnekRefundPath, body)
	if err != nil {
		return RefundResult{}, fmt.Errorf("esnekpos: refund: %w", err)
	}
	raw, _ := res.Value().(map[string]any)
	if !esnekOK(res) {
		return RefundResult{Status: StatusFail, Message: esnekMessage(res, "refund failed"), Raw: raw}, nil
	}
	return RefundResult{Status: StatusSuccess, RefundID: res.Get("REFUND_ID").String(), Raw: raw}, nil
}

func (e *EsnekPosAdapter) service(ctx context.Context, path string, body map[string]any, what string) (map[string]any, error) {
	res, err := e.post(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("esnekpos: %s: %w", what, err)
	}
	if !esnekOK(res) {
		return nil, fmt.Errorf("esnekpos: %s: %s", what, esnekMessage(res, "request failed"))
	}
	data := res
	if d := res.Get("data"); d.Exists() {
		data = d
	}
	out, _ := data.Value().(map[string]any)
	return out, nil
}

// InstallmentOptions lists installment plans for an amount, narrowed to a
// card when a six digit BIN is given.
func (e *EsnekPosAdapter) InstallmentOptions(ctx context.Context, amount float64, bin string, commissionForCustomer int) (map[string]any, error) {
	body := e.credentials()
	body["AMOUNT"] = formatAmount(amount)
	body["COMMISSION_FOR_CUSTOMER"] = commissionForCustomer
	if len(bin) == 6 {
		body["BIN"] = bin
	}
	return e.service(ctx, esnekInstallmentPath, body, "installment options")
}

func (e *EsnekPosAdapter) BinInfo(ctx context.Context, bin string) (map[string]any, error) {
	if len(bin) != 6 {
		return nil, fmt.Errorf("esnekpos: a six digit BIN is required")
	}
	body := e.credentials()
	body["BIN"] = bin
	return e.service(ctx, esnekBinPath, body, "bin info")
}

func (e *EsnekPosAdapter) DealerBalance(ctx context.Context, currency string) (map[string]any, error) {
	body := e.credentials()
	body["CURRENCY"] = firstNonEmpty(currency, "TRY")
	return e.service(ctx, esnekBalancePath, body, "dealer balance")
}
