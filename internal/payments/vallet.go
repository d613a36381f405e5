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

type ValletConfig struct {
	Username string `env:"USERNAME" validate:"required"`
	Password string `env:"PASSWORD" validate:"required"`
	ShopCode string `env:"SHOP_CODE" validate:"required"`
	HashKey  string `env:"HASH_KEY" validate:"required"`
	BaseURL  string `env:"BASE_URL" envDefault:"https://www.vallet.com.tr/api/v1"`
}

// ValletAdapter creates Vallet payment links.
type ValletAdapter struct {
	cfg    ValletConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewValletAdapter(settings Settings, deps Deps) (*ValletAdapter, error) {
	var cfg ValletConfig
	if err := decodeConfig("vallet", settings, &cfg); err != nil {
		return nil, err
	}
	return &ValletAdapter{cfg: cfg, client: deps.client("vallet"), logger: deps.logger()}, nil
}

func (v *ValletAdapter) hash(parts ...string) string {
	return sha1Base64(strings.Join(parts, "") + v.cfg.HashKey)
}

func (v *ValletAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("vallet", req, "OrderID", "Name", "Amount", "Currency", "SuccessURL", "Email"); err != nil {
		return PaymentResponse{}, err
	}

	price := formatAmount(req.Amount)
	currency := strings.ToUpper(req.Currency)
	failURL := firstNonEmpty(req.FailURL, req.SuccessURL)
	productType := req.Option("product_type", "DIJITAL_URUN")
	b := req.Buyer

	form := url.Values{
		"userName":           {v.cfg.Username},
		"password":           {v.cfg.Password},
		"shopCode":           {v.cfg.ShopCode},
		"productName":        {req.Name},
		"productData":        {firstNonEmpty(req.Description, req.Name)},
		"productType":        {productType},
		"productsTotalPrice": {price},
		"orderPrice":         {price},
		"currency":           {currency},
		"orderId":            {req.OrderID},
		"locale":             {firstNonEmpty(req.Lang, "tr")},
		"conversationId":     {req.Option("conversation_id", req.OrderID)},
		"buyerName":          {b.FirstName},
		"buyerSurName":       {b.LastName},
		"buyerGsmNo":         {req.Phone},
		"buyerIp":            {b.IP},
		"buyerMail":          {req.Email},
		"buyerAdress":        {b.Address},
		"buyerCountry":       {b.Country},
		"buyerCity":          {b.City},
		"buyerDistrict":      {b.State},
		"callbackOkUrl":      {req.SuccessURL},
		"callbackFailUrl":    {failURL},
		"hash": {v.hash(v.cfg.Username, v.cfg.Password, v.cfg.ShopCode, req.OrderID, currency,
			price, price, productType, req.SuccessURL, failURL)},
	}

	resp, err := v.client.PostForm(ctx, v.cfg.BaseURL+"/create-payment-link", form, nil)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("vallet: create payment link: %w", err)
	}
	res := gjson.ParseBytes(resp.Body)
	if res.Get("status").String() != "success" {
		msg := firstNonEmpty(res.Get("errorMessage").String(), res.Get("message").String(), string(resp.Body))
		return PaymentResponse{Status: StatusFail, Message: msg, OrderID: req.OrderID}, nil
	}

	return PaymentResponse{
		Status:        StatusSuccess,
		ID:            res.Get("ValletOrderId").String(),
		TransactionID: res.Get("ValletOrderId").String(),
		PaymentURL:    res.Get("payment_page_url").String(),
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      currency,
	}, nil
}

// HandleCallback verifies hash = base64(SHA1(orderId+currency+amount+status+hashKey)).
func (v *ValletAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	f := payload.Fields
	if f["orderId"] == "" || f["hash"] == "" {
		return CallbackResult{}, fmt.Errorf("vallet: missing callback parameters")
	}
	want := v.hash(f["orderId"], f["paymentCurrency"], f["paymentAmount"], f["status"])
	if !equalSign(f["hash"], want) {
		return CallbackResult{}, fmt.Errorf("vallet: invalid hash")
	}
	if f["status"] != "success" {
		return CallbackResult{}, fmt.Errorf("vallet: payment failed with status: %s", f["status"])
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       f["orderId"],
		TransactionID: f["ValletOrderId"],
		Amount:        parseAmount(f["paymentAmount"]),
		Currency:      f["paymentCurrency"],
		PaymentType:   f["paymentType"],
		PaymentDate:   f["paymentTime"],
	}, nil
}

// Acknowledge returns the body Vallet expects after a processed callback.
func (v *ValletAdapter) Acknowledge(CallbackResult) string {
	return "OK"
}
