package payments

import "context"

// PaymentGateway defines a common interface for all payment providers
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
	HandleCallback(ctx context.Context, payload CallbackPayload) (CallbackResult, error)
}

// StatusChecker is implemented by gateways that can look a payment up on demand.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, id string) (StatusResult, error)
}

// Refunder is implemented by gateways that support refunds through their API.
type Refunder interface {
	RefundPayment(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// Acknowledger lets a gateway dictate the body returned to the provider after
// a successful callback. Gateways without it are acknowledged with "OK".
type Acknowledger interface {
	Acknowledge(result CallbackResult) string
}
