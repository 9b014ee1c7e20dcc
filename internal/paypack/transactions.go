package paypack

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Initiation is the provider's answer to a cashin or cashout request.
type Initiation struct {
	TransactionID string
	Status        string
	Raw           TransactionResponse
}

// CashIn asks the payer's mobile-money wallet to send amount to the merchant.
func (c *Client) CashIn(ctx context.Context, number string, amount float64) (*Initiation, error) {
	return c.createTransaction(ctx, "/transactions/cashin", number, amount)
}

// CashOut pays amount out to the given mobile-money number.
func (c *Client) CashOut(ctx context.Context, number string, amount float64) (*Initiation, error) {
	return c.createTransaction(ctx, "/transactions/cashout", number, amount)
}

// CancelPayment cancels a pending payment.
func (c *Client) CancelPayment(ctx context.Context, transactionID string) (*TransactionView, error) {
	if transactionID == "" {
		return nil, errors.New("transaction id is required")
	}

	var view TransactionView
	path := "/payments/" + url.PathEscape(transactionID) + "/cancel"
	if err := c.authorized(ctx, http.MethodPost, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) createTransaction(ctx context.Context, path, number string, amount float64) (*Initiation, error) {
	if number == "" {
		return nil, errors.New("number is required")
	}
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	payload := map[string]any{
		"number":      number,
		"amount":      amount,
		"environment": c.environment,
	}

	var txn TransactionResponse
	if err := c.authorized(ctx, http.MethodPost, path, payload, &txn); err != nil {
		return nil, err
	}

	id := firstNonEmpty(txn.Ref, txn.ID)
	if id == "" {
		return nil, ErrMissingReference
	}

	status := txn.Status
	if status == "" {
		status = string(StatusPending)
	}

	return &Initiation{TransactionID: id, Status: status, Raw: txn}, nil
}
