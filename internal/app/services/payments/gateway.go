package payments

import (
	"context"
	"fmt"

	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
)

// InitiationResult is what a gateway returns when a payment starts.
type InitiationResult struct {
	Reference string
	Status    payment.TransactionStatus
	// RedirectURL sends the customer to a hosted payment page when set.
	RedirectURL string
}

// Handler integrates one payment gateway. Implementations talk to the
// provider; the service owns transaction state.
type Handler interface {
	Code() string
	Initiate(ctx context.Context, g payment.Gateway, m payment.Method, tx payment.Transaction) (InitiationResult, error)
	Verify(ctx context.Context, g payment.Gateway, tx payment.Transaction) (payment.TransactionStatus, error)
	Refund(ctx context.Context, g payment.Gateway, tx payment.Transaction, amount float64) error
}

// CashHandler settles in person. Transactions stay pending until staff confirm
// collection.
type CashHandler struct{}

// Code identifies the handler in the registry.
func (CashHandler) Code() string { return "cash" }

func (CashHandler) Initiate(_ context.Context, _ payment.Gateway, _ payment.Method, tx payment.Transaction) (InitiationResult, error) {
	return InitiationResult{
		Reference: "CASH-" + tx.ID,
		Status:    payment.TxPending,
	}, nil
}

// Verify has nothing remote to check; the status only changes when staff
// confirm collection.
func (CashHandler) Verify(_ context.Context, _ payment.Gateway, tx payment.Transaction) (payment.TransactionStatus, error) {
	return tx.Status, nil
}

func (CashHandler) Refund(_ context.Context, _ payment.Gateway, _ payment.Transaction, _ float64) error {
	return fmt.Errorf("cash refunds are handled at the counter")
}
