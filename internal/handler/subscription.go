package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/poller"
)

// Payment kinds accepted by the processor.
const (
	KindCashIn  = "cashin"
	KindCashOut = "cashout"
)

// Initiator defines the subset of the payment service used by the processor.
type Initiator interface {
	CashIn(ctx context.Context, req payment.CashInRequest) (*payment.Initiated, error)
	CashOut(ctx context.Context, req payment.CashOutRequest) (*payment.Initiated, error)
}

// StatusPoller follows a transaction until it settles or the hard stop.
type StatusPoller interface {
	Run(ctx context.Context, ref string) (poller.Snapshot, error)
}

// PaymentEvent represents the payload sent to the Lambda function.
type PaymentEvent struct {
	Kind     string         `json:"kind,omitempty"` // cashin (default) or cashout
	Number   string         `json:"number"`
	Amount   float64        `json:"amount"`
	Method   string         `json:"withdrawal_method,omitempty"`
	Client   string         `json:"client,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Outcome is emitted after processing completes.
type Outcome struct {
	ID             string             `json:"id"`
	TransactionID  string             `json:"transaction_id"`
	Reference      string             `json:"reference"`
	Status         poller.Status      `json:"status"`
	Settled        bool               `json:"settled"`
	TryAgain       bool               `json:"try_again"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	Message        string             `json:"message,omitempty"`
	Payment        *payment.Initiated `json:"payment,omitempty"`
	Request        PaymentEvent       `json:"request"`
}

// CallbackSender delivers outcomes to downstream systems.
type CallbackSender interface {
	Send(ctx context.Context, payload Outcome) error
}

// Processor initiates a payment and polls it to an outcome.
type Processor struct {
	payments Initiator
	poller   StatusPoller
	logger   *slog.Logger
	callback CallbackSender
	newID    func() string
}

// Option customizes the processor.
type Option func(*Processor)

// WithLogger lets callers supply a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCallbackSender wires a callback destination invoked after processing concludes.
func WithCallbackSender(sender CallbackSender) Option {
	return func(p *Processor) {
		p.callback = sender
	}
}

// NewProcessor builds a Processor.
func NewProcessor(payments Initiator, statusPoller StatusPoller, opts ...Option) *Processor {
	p := &Processor{
		payments: payments,
		poller:   statusPoller,
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Handle implements the AWS Lambda handler entry point.
func (p *Processor) Handle(ctx context.Context, event PaymentEvent) (Outcome, error) {
	event.Kind = strings.ToLower(strings.TrimSpace(event.Kind))
	if event.Kind == "" {
		event.Kind = KindCashIn
	}
	if err := validateEvent(event); err != nil {
		return Outcome{}, err
	}

	logger := p.logger.With("kind", event.Kind, "client", event.Client)
	logger.Info("initiating payment", "amount", event.Amount)

	initiated, err := p.initiate(ctx, event)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s failed: %w", event.Kind, err)
	}

	logger = logger.With("transaction_id", initiated.TransactionID, "reference", initiated.Reference)
	logger.Info("payment accepted; starting polling")

	snap, err := p.poller.Run(ctx, initiated.TransactionID)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return Outcome{}, err
	}

	out := Outcome{
		ID:             p.newID(),
		TransactionID:  initiated.TransactionID,
		Reference:      initiated.Reference,
		Status:         snap.Status,
		Settled:        snap.Status.Terminal(),
		TryAgain:       snap.TryAgain,
		ElapsedSeconds: snap.Seconds,
		Message:        snap.Message,
		Payment:        initiated,
		Request:        event,
	}
	if err != nil {
		out.Message = "transaction not confirmed before the invocation ended"
	}

	logger.Info("payment polling finished", "status", out.Status, "settled", out.Settled, "elapsed_seconds", out.ElapsedSeconds)

	// The invocation context may already be done; delivery gets its own budget.
	p.emitCallback(context.WithoutCancel(ctx), out)
	return out, nil
}

func (p *Processor) initiate(ctx context.Context, event PaymentEvent) (*payment.Initiated, error) {
	if event.Kind == KindCashOut {
		method := event.Method
		if method == "" {
			method = payment.MethodMobileMoney
		}
		return p.payments.CashOut(ctx, payment.CashOutRequest{
			Amount: event.Amount,
			Phone:  event.Number,
			Method: method,
		})
	}
	return p.payments.CashIn(ctx, payment.CashInRequest{
		Amount: event.Amount,
		Phone:  event.Number,
	})
}

func validateEvent(event PaymentEvent) error {
	if event.Kind != KindCashIn && event.Kind != KindCashOut {
		return fmt.Errorf("unsupported kind %q", event.Kind)
	}
	if strings.TrimSpace(event.Number) == "" {
		return errors.New("number is required")
	}
	if event.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

func (p *Processor) emitCallback(ctx context.Context, out Outcome) {
	if p.callback == nil {
		return
	}
	if err := p.callback.Send(ctx, out); err != nil {
		p.logger.Error("callback delivery failed", "error", err, "outcome_id", out.ID)
	}
}
