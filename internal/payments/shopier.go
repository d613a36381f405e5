package payments

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

type ShopierConfig struct {
	PAT      string `env:"PAT" validate:"required"`
	Username string `env:"USERNAME" validate:"required"`
	Key      string `env:"KEY" validate:"required"`
	BaseURL  string `env:"BASE_URL" envDefault:"https://api.shopier.com/v1"`
}

// ShopierAdapter sells through a product created on the fly; the product
// page is the payment page.
type ShopierAdapter struct {
	cfg    ShopierConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

func NewShopierAdapter(settings Settings, deps Deps) (*ShopierAdapter, error) {
	var cfg ShopierConfig
	if err := decodeConfig("shopier", settings, &cfg); err != nil {
		return nil, err
	}
	return &ShopierAdapter{cfg: cfg, client: deps.client("shopier"), logger: deps.logger()}, nil
}

var shopierCurrencies = map[string]string{"0": "TRY", "1": "USD", "2": "EUR"}

func (s *ShopierAdapter) auth() http.Header {
	return http.Header{"Authorization": {"Bearer " + s.cfg.PAT}}
}

func (s *ShopierAdapter) apiError(resp *httpclient.Response) error {
	msg := gjson.GetBytes(resp.Body, "message").String()
	return fmt.Errorf("shopier: API error: %s", firstNonEmpty(msg, http.StatusText(resp.StatusCode)))
}

func (s *ShopierAdapter) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := requireFields("shopier", req, "Name", "Amount"); err != nil {
		return PaymentResponse{}, err
	}

	media := req.Media
	if media == nil {
		media = []string{}
	}
	product := map[string]any{
		"type": req.Option("type", "digital"),
		"priceData": map[string]any{
			"currency": firstNonEmpty(req.Currency, "TRY"),
			"price":    formatAmount(req.Amount),
		},
		"shippingPayer": req.Option("shipping_payer", "sellerPays"),
		"title":         req.Name,
		"media":         media,
		"description":   req.Description,
	}
	if q := req.Option("stock_quantity", ""); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return PaymentResponse{}, fmt.Errorf("shopier: invalid stock_quantity %q", q)
		}
		product["stockQuantity"] = n
	} else if req.Quantity > 0 {
		product["stockQuantity"] = req.Quantity
	}

	resp, err := s.client.PostJSON(ctx, s.cfg.BaseURL+"/products", product, s.auth())
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("shopier: create product: %w", err)
	}
	if !resp.OK() {
		return PaymentResponse{}, s.apiError(resp)
	}

	res := gjson.ParseBytes(resp.Body)
	raw, _ := res.Value().(map[string]any)
	return PaymentResponse{
		Status:     StatusSuccess,
		ID:         res.Get("id").String(),
		PaymentURL: res.Get("url").String(),
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   firstNonEmpty(req.Currency, "TRY"),
		Extra:      raw,
	}, nil
}

// HandleCallback verifies hash = hex(HMAC-SHA256(key, res+username)) and
// decodes the base64 JSON order in res.
func (s *ShopierAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error) {
	res, hash := payload.Fields["res"], payload.Fields["hash"]
	if res == "" || hash == "" {
		return CallbackResult{}, fmt.Errorf("shopier: missing webhook parameters")
	}
	want := hex.EncodeToString(hmacSHA256(s.cfg.Key, res+s.cfg.Username))
	if !equalSign(hash, want) {
		return CallbackResult{}, fmt.Errorf("shopier: invalid webhook signature")
	}

	decoded, err := base64.StdEncoding.DecodeString(res)
	if err != nil || !gjson.ValidBytes(decoded) {
		return CallbackResult{}, fmt.Errorf("shopier: failed to parse webhook data")
	}
	data := gjson.ParseBytes(decoded)

	currency := data.Get("currency").String()
	if name, ok := shopierCurrencies[currency]; ok {
		currency = name
	}

	return CallbackResult{
		Status:        StatusSuccess,
		OrderID:       data.Get("orderid").String(),
		TransactionID: data.Get("orderid").String(),
		Amount:        data.Get("price").Float(),
		Currency:      currency,
		Test:          data.Get("istest").String() == "1",
		Extra: map[string]any{
			"email":         data.Get("email").String(),
			"buyer_name":    data.Get("buyername").String(),
			"buyer_surname": data.Get("buyersurname").String(),
			"product_id":    data.Get("productid").String(),
			"product_count": data.Get("productcount").Int(),
			"customer_note": data.Get("customernote").String(),
			"product_list":  data.Get("productlist").String(),
			"chart_details": data.Get("chartdetails").Value(),
		},
	}, nil
}

// DeleteProduct removes a product created by CreatePayment.
func (s *ShopierAdapter) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("shopier: product id is required")
	}
	resp, err := s.client.Delete(ctx, s.cfg.BaseURL+"/products/"+url.PathEscape(id), s.auth())
	if err != nil {
		return fmt.Errorf("shopier: delete product: %w", err)
	}
	if !resp.OK() {
		return s.apiError(resp)
	}
	s.logger.Debugw("shopier product deleted", "id", id)
	return nil
}
