package payments

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type IyzicoConfig struct {
	APIKey    string `env:"API_KEY" validate:"required"`
	SecretKey string `env:"SECRET_KEY" validate:"required"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://sandbox-api.iyzipay.com" validate:"required,url"`
}

// IyzicoAdapter uses the iyzico hosted checkout form.
type IyzicoAdapter struct {
	cfg    IyzicoConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewIyzicoAdapter(settings Settings, deps Deps) (*IyzicoAdapter, error) {
	var cfg IyzicoConfig
	if err := decodeConfig("iyzico", settings, &cfg); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &IyzicoAdapter{cfg: cfg, client: deps.client("iyzico"), logger: deps.logger()}, nil
}

var iyzicoCurrencies = map[string]string{"TRY": "TRY", "TL": "TRY", "USD": "USD", "EUR": "EUR", "GBP": "GBP"}

func iyzicoCurrency(c string) string {
	if v, ok := iyzicoCurrencies[strings.ToUpper(c)]; ok {
		return v
	}
	return "TRY"
}

const (
	iyzicoInitPath   = "/payment/iyzipos/checkoutform/initialize/auth/ecom"
	iyzicoDetailPath = "/payment/iyzipos/checkoutform/auth/ecom/detail"
	iyzicoRefundPath = "/payment/refund"
)

// authorization builds the IYZWSv2 header:
// base64("apiKey:K&randomKey:R&signature:hex(HMAC-SHA256(secret, R+path+body))").
func (i *IyzicoAdapter) authorization(random, path string, body []byte) string {
	sig := hex.EncodeToString(hmacSHA256(i.cfg.SecretKey, random+path+string(body)))
	auth := "apiKey:" + i.cfg.APIKey + "&randomKey:" + random + "&signature:" + sig
	return "IYZWSv2 " + base64.StdEncoding.EncodeToString([]byte(auth))
}

func (i *IyzicoAdapter) post(ctx context.Context, path string, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, err
	}
	random := uuid.NewString()
	header := http.Header{
		"Authorization": {i.authorization(random, path, body)},
		"x-iyzi-rnd":    {random},
	}
	resp, err := i.client.PostJSON(ctx, i.cfg.BaseURL+path, body, header)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.ParseBytes(resp.Body)
	if !res.IsObject() {
		return res, fmt.Errorf("unexpected response (http=%d)", resp.StatusCode)
	}
	return res, nil
}

type iyzicoAddress struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

func (i *IyzicoAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("iyzico", req, "Name", "Amount", "Currency", "CallbackURL", "Email"); err != nil {
		return PaymentResponse{}, err
	}

	price := formatAmount(req.Amount)
	now := time.Now()
	stamp := now.Format(time.DateTime)
	b := req.Buyer
	contact := firstNonEmpty(b.FullName(), "John Doe")
	address := iyzicoAddress{
		ContactName: contact,
		City:        firstNonEmpty(b.City, "Istanbul"),
		Country:     firstNonEmpty(b.Country, "Turkey"),
		Address:     firstNonEmpty(b.Address, "Nidakule Göztepe, Merdivenköy Mah. Bora Sok. No:1"),
		ZipCode:     firstNonEmpty(b.ZipCode, "34732"),
	}
	installments := req.Installments
	if len(installments) == 0 {
		installments = []int{1, 2, 3, 6, 9}
	}

	body := map[string]any{
		"locale":              firstNonEmpty(req.Lang, "tr"),
		"conversationId":      req.Option("conversation_id", uuid.NewString()),
		"price":               price,
		"paidPrice":           price,
		"currency":            iyzicoCurrency(req.Currency),
		"basketId":            firstNonEmpty(req.OrderID, "order_"+strconv.FormatInt(now.UnixMilli(), 10)),
		"paymentGroup":        "PRODUCT",
		"callbackUrl":         req.CallbackURL,
		"enabledInstallments": installments,
		"buyer": map[string]string{
			"id":                  firstNonEmpty(b.ID, req.CustomerID, "BY789"),
			"name":                firstNonEmpty(b.FirstName, "John"),
			"surname":             firstNonEmpty(b.LastName, "Doe"),
			"gsmNumber":           firstNonEmpty(req.Phone, "+905350000000"),
			"email":               req.Email,
			"identityNumber":      firstNonEmpty(b.IdentityNumber, "74300864791"),
			"lastLoginDate":       stamp,
			"registrationDate":    stamp,
			"registrationAddress": address.Address,
			"ip":                  firstNonEmpty(b.IP, "85.34.78.112"),
			"city":                address.City,
			"country":             address.Country,
			"zipCode":             address.ZipCode,
		},
		"shippingAddress": address,
		"billingAddress":  address,
		"basketItems": []map[string]string{{
			"id":        req.Option("item_id", "ITEM"+strconv.FormatInt(now.UnixMilli(), 10)),
			"name":      req.Name,
			"category1": firstNonEmpty(req.Category, "Digital"),
			"category2": req.Option("sub_category", "Service"),
			"itemType":  "VIRTUAL",
			"price":     price,
		}},
	}

	res, err := i.post(ctx, iyzicoInitPath, body)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("iyzico: checkout form initialize: %w", err)
	}
	if res.Get("status").String() != "success" {
		return PaymentResponse{}, fmt.Errorf("iyzico: payment creation failed: %s", res.Get("errorMessage").String())
	}

	return PaymentResponse{
		Status:     StatusSuccess,
		Token:      res.Get("token").String(),
		ID:         res.Get("token").String(),
		PaymentURL: res.Get("paymentPageUrl").String(),
		HTML:       res.Get("checkoutFormContent").String(),
		OrderID:    body["basketId"].(string),
		Amount:     req.Amount,
		Currency:   iyzicoCurrency(req.Currency),
		ExpiresAt:  res.Get("tokenExpireTime").String(),
	}, nil
}

func (i *IyzicoAdapter) retrieve(ctx context.Context, token string) (gjson.Result, error) {
	res, err := i.post(ctx, iyzicoDetailPath, map[string]string{
		"locale":         "tr",
		"conversationId": "retrieve_" + uuid.NewString(),
		"token":          token,
	})
	if err != nil {
		return res, fmt.Errorf("iyzico: retrieval error: %w", err)
	}
	return res, nil
}

// HandleCallback exchanges the posted token for the checkout form result.
func (i *IyzicoAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	token := payload.Get("token")
	if token == "" {
		return CallbackResult{}, fmt.Errorf("iyzico: invalid callback data: token is missing")
	}
	res, err := i.retrieve(ctx, token)
	if err != nil {
		return CallbackResult{}, err
	}
	if res.Get("status").String() != "success" || res.Get("paymentStatus").String() != "SUCCESS" {
		return CallbackResult{}, fmt.Errorf("iyzico: payment failed: %s", firstNonEmpty(res.Get("errorMessage").String(), "unknown error"))
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       res.Get("basketId").String(),
		TransactionID: res.Get("paymentId").String(),
		Amount:        parseAmount(res.Get("price").String()),
		Currency:      iyzicoCurrency(res.Get("currency").String()),
		PaymentType:   firstNonEmpty(res.Get("cardType").String(), "Unknown"),
		Extra: map[string]any{
			"token":             token,
			"paid_price":        res.Get("paidPrice").Float(),
			"installment":       res.Get("installment").Int(),
			"item_transactions": res.Get("itemTransactions.#.paymentTransactionId").Value(),
		},
	}, nil
}

// PaymentStatus looks up a checkout form by its token.
func (i *IyzicoAdapter) PaymentStatus(ctx context.Context, token string) (StatusResult, error) {
	res, err := i.retrieve(ctx, token)
	if err != nil {
		return StatusResult{}, err
	}
	state := res.Get("paymentStatus").String()
	status := StatusPending
	switch {
	case res.Get("status").String() != "success":
		status = StatusFail
	case state == "SUCCESS":
		status = StatusSuccess
	case state == "FAILURE":
		status = StatusFail
	}
	raw, _ := res.Value().(map[string]any)
	return StatusResult{
		Status:        status,
		ProviderState: state,
		OrderID:       res.Get("basketId").String(),
		TransactionID: res.Get("paymentId").String(),
		Amount:        parseAmount(res.Get("price").String()),
		Currency:      res.Get("currency").String(),
		Raw:           raw,
	}, nil
}

// RefundPayment refunds one basket item; PaymentID is its
// paymentTransactionId.
func (i *IyzicoAdapter) RefundPayment(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if req.Amount <= 0 {
		return RefundResult{}, fmt.Errorf("iyzico: refund amount is required")
	}
	res, err := i.post(ctx, iyzicoRefundPath, map[string]string{
		"locale":               "tr",
		"conversationId":       uuid.NewString(),
		"paymentTransactionId": req.PaymentID,
		"price":                formatAmount(req.Amount),
		"currency":             iyzicoCurrency(req.Currency),
		"ip":                   "85.34.78.112",
	})
	if err != nil {
		return RefundResult{}, fmt.Errorf("iyzico: refund: %w", err)
	}
	raw, _ := res.Value().(map[string]any)
	if res.Get("status").String() != "success" {
		return RefundResult{Status: StatusFail, Message: res.Get("errorMessage").String(), Raw: raw}, nil
	}
	return RefundResult{Status: StatusSuccess, RefundID: res.Get("paymentTransactionId").String(), Raw: raw}, nil
}
