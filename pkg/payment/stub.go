package payment

import (
	"context"
	"strings"
	"sync"
)

// StubProvider is an in-memory gateway for development and tests.
// Every initiated transaction validates as paid unless listed in Declined.
type StubProvider struct {
	mu       sync.Mutex
	amounts  map[string]int64
	Declined map[string]bool // transaction ids that verify as FAILED
	FailInit bool            // InitiatePayment returns ErrDeclined
	Verified int             // VerifyPayment call count
}

func NewStubProvider() *StubProvider {
	return &StubProvider{amounts: make(map[string]int64), Declined: make(map[string]bool)}
}

func (s *StubProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInit {
		return nil, ErrDeclined
	}
	s.amounts[req.TransactionID] = req.AmountCents
	return &PaymentResponse{
		Reference:   "stub_" + req.TransactionID,
		Status:      "SUCCESS",
		RedirectURL: "https://stub.gateway.local/pay/" + req.TransactionID,
	}, nil
}

// VerifyPayment accepts either the transaction id or the val_ reference handed out on success.
func (s *StubProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Verified++
	reference = strings.TrimPrefix(reference, "val_")
	amount, ok := s.amounts[reference]
	if !ok || s.Declined[reference] {
		return &Verification{Status: "FAILED", TransactionID: reference}, nil
	}
	return &Verification{Status: "VALID", TransactionID: reference, ValidationRef: "val_" + reference, AmountCents: amount}, nil
}
