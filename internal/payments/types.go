package payments

import (
	"net/http"
	"strconv"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusPending Status = "pending"
)

// PaymentRequest is the provider-neutral description of a payment. Each
// gateway declares which of these fields it requires and maps them onto its
// own wire format.
type PaymentRequest struct {
	OrderID     string  `json:"orderId,omitempty" schema:"orderId" validate:"required"`
	Name        string  `json:"name,omitempty" schema:"name" validate:"required"`
	Description string  `json:"description,omitempty" schema:"description" validate:"required"`
	Category    string  `json:"category,omitempty" schema:"category"`
	Amount      float64 `json:"amount" schema:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency,omitempty" schema:"currency" validate:"required"`
	Quantity    int     `json:"quantity,omitempty" schema:"quantity"`
	Lang        string  `json:"lang,omitempty" schema:"lang"`
	Email       string  `json:"email,omitempty" schema:"email" validate:"required,email"`
	Phone       string  `json:"phone,omitempty" schema:"phone" validate:"required"`
	CustomerID  string  `json:"customerId,omitempty" schema:"customerId" validate:"required"`
	Buyer       Buyer   `json:"buyer,omitempty" schema:"buyer"`

	CallbackURL string `json:"callbackUrl,omitempty" schema:"callbackUrl" validate:"required,url"`
	SuccessURL  string `json:"successUrl,omitempty" schema:"successUrl" validate:"required,url"`
	FailURL     string `json:"failUrl,omitempty" schema:"failUrl"`
	CancelURL   string `json:"cancelUrl,omitempty" schema:"cancelUrl"`

	ExpiryDate     string `json:"expiryDate,omitempty" schema:"expiryDate" validate:"required"`
	Lifetime       int    `json:"lifetime,omitempty" schema:"lifetime"`
	MaxInstallment int    `json:"maxInstallment,omitempty" schema:"maxInstallment" validate:"required,gt=0"`
	Installments   []int  `json:"installments,omitempty" schema:"installments"`

	// Method selects a provider-specific channel: bufpay pay_type, anypay
	// method, fedapay mode, "bkm" for esnekpos.
	Method    string     `json:"method,omitempty" schema:"method" validate:"required"`
	Card      *Card      `json:"card,omitempty" schema:"card"`
	Recurring *Recurring `json:"recurring,omitempty" schema:"recurring"`
	Media     []string   `json:"media,omitempty" schema:"media"`

	Metadata map[string]any    `json:"metadata,omitempty" schema:"-"`
	Options  map[string]string `json:"options,omitempty" schema:"-"`
}

// Option returns a provider-specific knob or def when it is unset.
func (r PaymentRequest) Option(key, def string) string {
	if v, ok := r.Options[key]; ok && v != "" {
		return v
	}
	return def
}

type Buyer struct {
	ID             string `json:"id,omitempty" schema:"id"`
	FirstName      string `json:"firstName,omitempty" schema:"firstName" validate:"required"`
	LastName       string `json:"lastName,omitempty" schema:"lastName" validate:"required"`
	IdentityNumber string `json:"identityNumber,omitempty" schema:"identityNumber"`
	IP             string `json:"ip,omitempty" schema:"ip"`
	Address        string `json:"address,omitempty" schema:"address"`
	City           string `json:"city,omitempty" schema:"city"`
	State          string `json:"state,omitempty" schema:"state"`
	Country        string `json:"country,omitempty" schema:"country"`
	ZipCode        string `json:"zipCode,omitempty" schema:"zipCode"`
	PhoneCountry   string `json:"phoneCountry,omitempty" schema:"phoneCountry"`
}

// FullName joins first and last name, or returns "" when both are empty.
func (b Buyer) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

type Card struct {
	Number      string `json:"number" schema:"number" validate:"required,numeric"`
	ExpireMonth string `json:"expireMonth" schema:"expireMonth" validate:"required"`
	ExpireYear  string `json:"expireYear" schema:"expireYear" validate:"required"`
	CVV         string `json:"cvv,omitempty" schema:"cvv" validate:"required"`
	Owner       string `json:"owner" schema:"owner" validate:"required"`
	Installment string `json:"installment,omitempty" schema:"installment"`
}

// masked keeps the last four digits of the number and drops the CVV.
func (c Card) masked() Card {
	if n := len(c.Number); n > 4 {
		c.Number = strings.Repeat("*", n-4) + c.Number[n-4:]
	}
	c.CVV = ""
	return c
}

// Redacted returns a copy safe to persist or log: the card number is masked
// and the CVV removed.
func (r PaymentRequest) Redacted() PaymentRequest {
	if r.Card != nil {
		card := r.Card.masked()
		r.Card = &card
	}
	return r
}

type Recurring struct {
	Repeat     string `json:"repeat,omitempty" schema:"repeat"`
	TriesCount string `json:"triesCount,omitempty" schema:"triesCount"`
	StartDate  string `json:"startDate,omitempty" schema:"startDate"`
}

// PaymentResponse is the normalized result of creating a payment.
type PaymentResponse struct {
	Status        Status  `json:"status"`
	Message       string  `json:"message,omitempty"`
	PaymentURL    string  `json:"url,omitempty"`
	ID            string  `json:"id,omitempty"`
	TransactionID string  `json:"transactionId,omitempty"`
	OrderID       string  `json:"orderId,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Token         string  `json:"token,omitempty"`
	QR            string  `json:"qr,omitempty"`
	HTML          string  `json:"html,omitempty"`
	ExpiresAt     string  `json:"expiresAt,omitempty"`

	// Data holds form fields the client must POST to PaymentURL.
	Data  map[string]string `json:"data,omitempty"`
	Extra map[string]any    `json:"extra,omitempty"`
}

// CallbackPayload is an inbound provider notification. Fields holds the
// top-level values as strings; Raw keeps the body for providers that sign it.
type CallbackPayload struct {
	Fields   map[string]string
	Raw      []byte
	Header   http.Header
	RemoteIP string
}

// NewCallbackPayload builds a payload from already decoded fields.
func NewCallbackPayload(fields map[string]string) CallbackPayload {
	if fields == nil {
		fields = map[string]string{}
	}
	return CallbackPayload{Fields: fields, Header: http.Header{}}
}

func (p CallbackPayload) Get(key string) string {
	return p.Fields[key]
}

// First returns the first non-empty value among keys.
func (p CallbackPayload) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p.Fields[k]); v != "" {
			return v
		}
	}
	return ""
}

// Float parses a field as a decimal number, returning 0 when it is absent or malformed.
func (p CallbackPayload) Float(key string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(p.Fields[key]), 64)
	if err != nil {
		return 0
	}
	return f
}

// CallbackResult is the normalized outcome of a verified callback.
type CallbackResult struct {
	Status        Status         `json:"status"`
	OrderID       string         `json:"orderId"`
	TransactionID string         `json:"transactionId,omitempty"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency,omitempty"`
	PaymentType   string         `json:"paymentType,omitempty"`
	PaymentDate   string         `json:"paymentDate,omitempty"`
	Test          bool           `json:"test,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// StatusResult is a provider's current view of a payment.
type StatusResult struct {
	Status        Status         `json:"status"`
	ProviderState string         `json:"providerState,omitempty"`
	OrderID       string         `json:"orderId,omitempty"`
	TransactionID string         `json:"transactionId,omitempty"`
	Amount        float64        `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	Raw           map[string]any `json:"raw,omitempty"`
}

type RefundRequest struct {
	PaymentID string  `json:"paymentId" validate:"required"`
	Amount    float64 `json:"amount,omitempty" validate:"gte=0"`
	Currency  string  `json:"currency,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type RefundResult struct {
	Status   Status         `json:"status"`
	RefundID string         `json:"refundId,omitempty"`
	Message  string         `json:"message,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}
