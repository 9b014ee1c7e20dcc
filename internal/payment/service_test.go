package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

type fakeProvider struct {
	cashInFn  func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error)
	cashOutFn func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error)
	calls     int
}

func (f *fakeProvider) CashIn(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
	f.calls++
	return f.cashInFn(ctx, number, amount)
}

func (f *fakeProvider) CashOut(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
	f.calls++
	return f.cashOutFn(ctx, number, amount)
}

func fixedNow() time.Time { return time.UnixMilli(1_760_000_000_000) }

func TestServiceCashIn(t *testing.T) {
	provider := &fakeProvider{
		cashInFn: func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
			require.Equal(t, "+250788123456", number)
			require.EqualValues(t, 1500, amount)
			return &paypack.Initiation{TransactionID: "ref-1", Status: "pending"}, nil
		},
	}
	svc := NewService(provider, WithNow(fixedNow))

	out, err := svc.CashIn(context.Background(), CashInRequest{Amount: 1500, Phone: "0788 123 456"})
	require.NoError(t, err)
	require.Equal(t, "ref-1", out.TransactionID)
	require.Regexp(t, `^CASHIN-1760000000000-[0-9a-z]{9}$`, out.Reference)
	require.Equal(t, "pending", out.Status)
	require.Equal(t, "RWF", out.Currency)
	require.Equal(t, "+250788123456", out.Phone)
	require.Equal(t, "Cash In - Deposit 1500 RWF", out.Description)
	require.Equal(t, 1, provider.calls)
}

func TestServiceValidationNeverReachesProvider(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider)

	_, err := svc.CashIn(context.Background(), CashInRequest{Amount: 99, Phone: "0788123456"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "amount", verr.Field)

	_, err = svc.CashIn(context.Background(), CashInRequest{Amount: 500, Phone: "0612345678"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "customer_phone", verr.Field)

	_, err = svc.CashOut(context.Background(), CashOutRequest{Amount: 500, Phone: "0788123456"})
	require.EqualError(t, err, "Please fill in all required fields")

	require.Equal(t, 0, provider.calls)
}

func TestServiceCashOut(t *testing.T) {
	provider := &fakeProvider{
		cashOutFn: func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
			return &paypack.Initiation{TransactionID: "out-1"}, nil
		},
	}
	svc := NewService(provider, WithNow(fixedNow))

	out, err := svc.CashOut(context.Background(), CashOutRequest{Amount: 2000, Phone: "+250788123456", Method: MethodMobileMoney})
	require.NoError(t, err)
	require.Equal(t, "out-1", out.TransactionID)
	require.Regexp(t, `^CASHOUT-`, out.Reference)
	require.Equal(t, MethodMobileMoney, out.Method)
	require.Equal(t, "Cash Out - Withdrawal 2000 RWF via mobile_money", out.Description)
}

func TestServiceCreatePayment(t *testing.T) {
	provider := &fakeProvider{
		cashInFn: func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
			return &paypack.Initiation{TransactionID: "pay-1"}, nil
		},
	}
	svc := NewService(provider, WithNow(fixedNow))

	out, err := svc.CreatePayment(context.Background(), PaymentRequest{
		Amount:      750,
		Currency:    "RWF",
		Description: "Order 12",
		Email:       "buyer@example.com",
		Phone:       "0788123456",
	})
	require.NoError(t, err)
	require.Regexp(t, `^PAY-`, out.Reference)
	require.Equal(t, "Order 12", out.Description)
}

func TestServiceReclassifiesProviderErrors(t *testing.T) {
	provider := &fakeProvider{
		cashInFn: func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
			return nil, &paypack.APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "Insufficient Balance on wallet"}
		},
		cashOutFn: func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
			return nil, &paypack.APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "limit exceeded"}
		},
	}
	svc := NewService(provider)

	_, err := svc.CashIn(context.Background(), CashInRequest{Amount: 500, Phone: "0788123456"})
	var apiErr *paypack.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, CategoryInsufficientBalance, apiErr.Code)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = svc.CashOut(context.Background(), CashOutRequest{Amount: 500, Phone: "0788123456", Method: MethodBankTransfer})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "BAD_REQUEST", apiErr.Code)
	require.Equal(t, "limit exceeded", apiErr.Message)
}

type stubClassifier struct{ called bool }

func (s *stubClassifier) Classify(err error) error {
	s.called = true
	return errors.New("classified")
}

func TestServiceUsesInjectedClassifier(t *testing.T) {
	provider := &fakeProvider{
		cashInFn: func(ctx context.Context, number string, amount float64) (*paypack.Initiation, error) {
			return nil, errors.New("boom")
		},
	}
	stub := &stubClassifier{}
	svc := NewService(provider, WithClassifier(stub))

	_, err := svc.CashIn(context.Background(), CashInRequest{Amount: 500, Phone: "0788123456"})
	require.EqualError(t, err, "classified")
	require.True(t, stub.called)
}
