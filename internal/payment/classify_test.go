package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

func TestClassifyByMessage(t *testing.T) {
	c := DefaultClassifier()

	cases := []struct {
		message string
		want    string
	}{
		{"Insufficient funds", CategoryInsufficientBalance},
		{"wallet BALANCE too low", CategoryInsufficientBalance},
		{"Invalid phone number supplied", CategoryInvalidPhone},
		{"request TIMEOUT", CategoryNetworkError},
		{"network unreachable", CategoryNetworkError},
	}
	for _, tc := range cases {
		err := c.Classify(&paypack.APIError{StatusCode: 400, Code: "BAD_REQUEST", Message: tc.message})
		var apiErr *paypack.APIError
		require.ErrorAs(t, err, &apiErr, tc.message)
		require.Equal(t, tc.want, apiErr.Code, tc.message)
		require.Equal(t, 400, apiErr.StatusCode)
	}
}

func TestClassifyPrefersCodes(t *testing.T) {
	c := DefaultClassifier()

	// The message alone would look like a phone problem.
	orig := &paypack.APIError{StatusCode: 402, Code: "insufficient_funds", Message: "invalid number of attempts"}
	err := c.Classify(orig)

	var apiErr *paypack.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, CategoryInsufficientBalance, apiErr.Code)
	require.ErrorIs(t, err, orig)
}

func TestClassifyTransportFailures(t *testing.T) {
	c := DefaultClassifier()

	refused := &paypack.APIError{StatusCode: 500, Code: "Network Error", Message: `Post "https://payments.paypack.rw/api/transactions/cashin": dial tcp: connection refused`}
	require.Same(t, refused, c.Classify(refused), "only timeouts and network messages are reworded")

	timedOut := &paypack.APIError{StatusCode: 500, Code: "Network Error", Message: "context deadline exceeded (Client.Timeout exceeded while awaiting headers)"}
	var apiErr *paypack.APIError
	require.ErrorAs(t, c.Classify(timedOut), &apiErr)
	require.Equal(t, CategoryNetworkError, apiErr.Code)
}

func TestClassifyPassesThroughUnmatched(t *testing.T) {
	c := DefaultClassifier()

	orig := &paypack.APIError{StatusCode: 400, Code: "BAD_REQUEST", Message: "invalid amount"}
	require.Same(t, orig, c.Classify(orig))

	plain := errors.New("something else")
	require.Same(t, plain, c.Classify(plain))
}

func TestNewRuleClassifierValidates(t *testing.T) {
	_, err := NewRuleClassifier([]byte("rules:\n  - codes: [X]\n"))
	require.Error(t, err)

	_, err = NewRuleClassifier([]byte("rules: ["))
	require.Error(t, err)
}
