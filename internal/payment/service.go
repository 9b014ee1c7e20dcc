package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

// ProviderClient is the subset of the Paypack client used to initiate payments.
type ProviderClient interface {
	CashIn(ctx context.Context, number string, amount float64) (*paypack.Initiation, error)
	CashOut(ctx context.Context, number string, amount float64) (*paypack.Initiation, error)
}

// CashInRequest is a deposit submitted by the payer.
type CashInRequest struct {
	Amount float64 `validate:"gte=100"`
	Phone  string  `validate:"required,rwphone"`
}

// CashOutRequest is a withdrawal to the payer's account.
type CashOutRequest struct {
	Amount float64 `validate:"gte=100"`
	Phone  string  `validate:"required,rwphone"`
	Method string  `validate:"required,oneof=mobile_money bank_transfer"`
}

// PaymentRequest is a generic payment collected through cash-in.
type PaymentRequest struct {
	Amount      float64 `validate:"gte=100"`
	Currency    string  `validate:"required"`
	Description string  `validate:"required"`
	Email       string  `validate:"required,email"`
	Phone       string  `validate:"required,rwphone"`
}

// Initiated describes a payment accepted by the provider. The caller polls
// TransactionID until it settles.
type Initiated struct {
	TransactionID string  `json:"transaction_id"`
	Reference     string  `json:"reference"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Phone         string  `json:"phone"`
	Description   string  `json:"description"`
	Method        string  `json:"withdrawal_method,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Service validates payment forms and issues exactly one provider call per
// accepted form.
type Service struct {
	client     ProviderClient
	classifier Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClassifier replaces the default rule classifier.
func WithClassifier(c Classifier) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow overrides the clock used for references.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service.
func NewService(client ProviderClient, opts ...ServiceOption) *Service {
	s := &Service{
		client:     client,
		classifier: DefaultClassifier(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CashIn requests a deposit from the payer's mobile-money wallet.
func (s *Service) CashIn(ctx context.Context, req CashInRequest) (*Initiated, error) {
	req.Phone = compact(req.Phone)
	if err := checkForm(req); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	ref := NewReference(PrefixCashIn, s.now())
	desc := fmt.Sprintf("Cash In - Deposit %s %s", formatAmount(req.Amount), paypack.Currency)
	out, err := s.initiate(ctx, s.client.CashIn, "cashin", phone, req.Amount, ref)
	if err != nil {
		return nil, err
	}

	out.Phone = phone
	out.Description = desc
	out.Message = "Payment request sent! Please check your phone for the mobile money prompt."
	return out, nil
}

// CashOut requests a withdrawal to the payer.
func (s *Service) CashOut(ctx context.Context, req CashOutRequest) (*Initiated, error) {
	req.Phone = compact(req.Phone)
	req.Method = strings.TrimSpace(req.Method)
	if err := checkForm(req); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	ref := NewReference(PrefixCashOut, s.now())
	desc := fmt.Sprintf("Cash Out - Withdrawal %s %s via %s", formatAmount(req.Amount), paypack.Currency, req.Method)
	out, err := s.initiate(ctx, s.client.CashOut, "cashout", phone, req.Amount, ref)
	if err != nil {
		return nil, err
	}

	out.Phone = phone
	out.Description = desc
	out.Method = req.Method
	out.Message = "Withdrawal request sent! Please check your phone for the mobile money prompt."
	return out, nil
}

// CreatePayment collects a generic payment through cash-in.
func (s *Service) CreatePayment(ctx context.Context, req PaymentRequest) (*Initiated, error) {
	req.Phone = compact(req.Phone)
	req.Currency = strings.TrimSpace(req.Currency)
	req.Description = strings.TrimSpace(req.Description)
	req.Email = strings.TrimSpace(req.Email)
	if err := checkForm(req); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	ref := NewReference(PrefixPayment, s.now())
	out, err := s.initiate(ctx, s.client.CashIn, "payment", phone, req.Amount, ref)
	if err != nil {
		return nil, err
	}

	out.Phone = phone
	out.Currency = req.Currency
	out.Description = req.Description
	return out, nil
}

type createFunc func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error)

func (s *Service) initiate(ctx context.Context, create createFunc, flow, phone string, amount float64, ref string) (*Initiated, error) {
	logger := s.logger.With("flow", flow, "reference", ref)
	logger.Info("initiating payment", "amount", amount)

	started, err := create(ctx, phone, amount)
	if err != nil {
		classified := s.classifier.Classify(err)
		logger.Warn("payment initiation failed", "error", classified)
		return nil, classified
	}

	logger.Info("payment accepted", "transaction_id", started.TransactionID)
	return &Initiated{
		TransactionID: started.TransactionID,
		Reference:     ref,
		Status:        string(paypack.StatusPending),
		Amount:        amount,
		Currency:      paypack.Currency,
	}, nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
