package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"posbridge/internal/tracing"
)

var (
	ErrUnknownProvider = errors.New("invalid payment provider")
	ErrUnsupported     = errors.New("operation not supported by provider")
)

var tracer = tracing.Tracer("posbridge/internal/payments")

// EventLogger records gateway traffic for audit. It never drives behavior.
type EventLogger interface {
	InsertPaymentLog(ctx context.Context, provider, orderID, logType string, payload any) error
}

type PaymentManager struct {
	mu       sync.RWMutex
	gateways map[string]PaymentGateway
	logger   *zap.SugaredLogger
	events   EventLogger
}

func NewPaymentManager(logger *zap.SugaredLogger) *PaymentManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PaymentManager{gateways: make(map[string]PaymentGateway), logger: logger}
}

// WithEventLogger attaches an audit log for create and callback traffic.
func (m *PaymentManager) WithEventLogger(events EventLogger) *PaymentManager {
	m.events = events
	return m
}

func (m *PaymentManager) RegisterGateway(name string, gateway PaymentGateway) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateways[strings.ToLower(name)] = gateway
	providersLoaded.Set(float64(len(m.gateways)))
}

// Load builds each named provider with its settings. A provider that fails
// to build is logged and skipped so the others still load.
func (m *PaymentManager) Load(names []string, settingsFor func(name string) Settings, deps Deps) []string {
	if deps.Logger == nil {
		deps.Logger = m.logger
	}
	var loaded []string
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		gw, err := Build(name, settingsFor(name), deps)
		if err != nil {
			m.logger.Errorw("failed to load provider", "provider", name, "error", err.Error())
			continue
		}
		m.RegisterGateway(name, gw)
		loaded = append(loaded, name)
		m.logger.Infow("provider loaded", "provider", name)
	}
	return loaded
}

func (m *PaymentManager) Gateway(name string) (PaymentGateway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gw, ok := m.gateways[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return gw, nil
}

// Providers returns the configured provider names in sorted order.
func (m *PaymentManager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities reports which optional operations a provider supports.
func (m *PaymentManager) Capabilities(name string) []string {
	gw, err := m.Gateway(name)
	if err != nil {
		return nil
	}
	caps := []string{"create", "callback"}
	if _, ok := gw.(StatusChecker); ok {
		caps = append(caps, "status")
	}
	if _, ok := gw.(Refunder); ok {
		caps = append(caps, "refund")
	}
	return caps
}

func (m *PaymentManager) observe(ctx context.Context, provider, op string, fn func(ctx context.Context) (Status, error)) error {
	ctx, span := tracer.Start(ctx, "payments."+op)
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", provider))

	start := time.Now()
	status, err := fn(ctx)
	operationDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(provider, op, outcome(status, err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Errorw("payment operation failed", "provider", provider, "operation", op, "error", err.Error())
		return err
	}
	span.SetAttributes(attribute.String("payment.status", string(status)))
	m.logger.Infow("payment operation", "provider", provider, "operation", op, "status", status)
	return nil
}

func (m *PaymentManager) audit(ctx context.Context, provider, orderID, logType string, payload any) {
	if m.events == nil {
		return
	}
	if err := m.events.InsertPaymentLog(ctx, provider, orderID, logType, payload); err != nil {
		m.logger.Warnw("payment log write failed", "provider", provider, "log_type", logType, "error", err.Error())
	}
}

func (m *PaymentManager) CreatePayment(ctx context.Context, provider string, req PaymentRequest) (PaymentResponse, error) {
	gw, err := m.Gateway(provider)
	if err != nil {
		return PaymentResponse{}, err
	}
	var resp PaymentResponse
	err = m.observe(ctx, provider, "create", func(ctx context.Context) (Status, error) {
		m.audit(ctx, provider, req.OrderID, "request", req.Redacted())
		var err error
		resp, err = gw.CreatePayment(ctx, req)
		if err != nil {
			m.audit(ctx, provider, req.OrderID, "error", map[string]string{"error": err.Error()})
			return "", err
		}
		m.audit(ctx, provider, req.OrderID, "response", resp)
		return resp.Status, nil
	})
	return resp, err
}

func (m *PaymentManager) HandleCallback(ctx context.Context, provider string, payload CallbackPayload) (CallbackResult, error) {
	gw, err := m.Gateway(provider)
	if err != nil {
		return CallbackResult{}, err
	}
	var res CallbackResult
	err = m.observe(ctx, provider, "callback", func(ctx context.Context) (Status, error) {
		var err error
		res, err = gw.HandleCallback(ctx, payload)
		if err != nil {
			m.audit(ctx, provider, "", "error", map[string]any{"error": err.Error(), "fields": payload.Fields})
			return "", err
		}
		m.audit(ctx, provider, res.OrderID, "webhook", res)
		return res.Status, nil
	})
	return res, err
}

func (m *PaymentManager) PaymentStatus(ctx context.Context, provider, id string) (StatusResult, error) {
	gw, err := m.Gateway(provider)
	if err != nil {
		return StatusResult{}, err
	}
	checker, ok := gw.(StatusChecker)
	if !ok {
		return StatusResult{}, fmt.Errorf("%w: %s status", ErrUnsupported, provider)
	}
	var res StatusResult
	err = m.observe(ctx, provider, "status", func(ctx context.Context) (Status, error) {
		var err error
		res, err = checker.PaymentStatus(ctx, id)
		return res.Status, err
	})
	return res, err
}

func (m *PaymentManager) RefundPayment(ctx context.Context, provider string, req RefundRequest) (RefundResult, error) {
	gw, err := m.Gateway(provider)
	if err != nil {
		return RefundResult{}, err
	}
	refunder, ok := gw.(Refunder)
	if !ok {
		return RefundResult{}, fmt.Errorf("%w: %s refund", ErrUnsupported, provider)
	}
	if err := validate.Struct(req); err != nil {
		return RefundResult{}, fmt.Errorf("%s: %w", provider, validationError(err))
	}
	var res RefundResult
	err = m.observe(ctx, provider, "refund", func(ctx context.Context) (Status, error) {
		var err error
		res, err = refunder.RefundPayment(ctx, req)
		if err == nil {
			m.audit(ctx, provider, req.PaymentID, "refund", res)
		}
		return res.Status, err
	})
	return res, err
}

// Acknowledgement is the body returned to a provider after a verified callback.
func (m *PaymentManager) Acknowledgement(provider string, result CallbackResult) string {
	gw, err := m.Gateway(provider)
	if err != nil {
		return "OK"
	}
	if ack, ok := gw.(Acknowledger); ok {
		return ack.Acknowledge(result)
	}
	return "OK"
}
