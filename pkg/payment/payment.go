package payment

import (
	"context"
	"errors"
)

type PaymentRequest struct {
	TransactionID string // unique per attempt; echoed back on every callback
	AmountCents   int64
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	SuccessURL    string
	FailURL       string
	CancelURL     string
	IPNURL        string
}

type PaymentResponse struct {
	Reference   string // gateway session key
	Status      string
	RedirectURL string
	Raw         string // response body, kept for audit
}

// Verification is the gateway's own view of a transaction.
type Verification struct {
	Status        string // VALID, VALIDATED, FAILED, ...
	TransactionID string
	ValidationRef string
	AmountCents   int64
	Currency      string
	Raw           string
}

// Paid reports whether the gateway confirmed the transaction.
func (v *Verification) Paid() bool {
	return v != nil && (v.Status == "VALID" || v.Status == "VALIDATED")
}

var ErrDeclined = errors.New("payment gateway declined the request")

type Provider interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, reference string) (*Verification, error)
}
