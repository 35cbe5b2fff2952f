package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldserve/config"
	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/logger"
	"fieldserve/pkg/payment"

	"github.com/google/uuid"
)

// GatewaySession is what a client needs to continue on the hosted checkout page.
type GatewaySession struct {
	PaymentID     uint   `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

// PaymentService is the only code path allowed to set a booking's paid flag.
// The flag and the payment row always change in the same transaction.
type PaymentService struct {
	store    *repository.Store
	provider payment.Provider
	cfg      config.GatewayConfig
	notify   Notifier
	log      logger.ILogger
}

func NewPaymentService(store *repository.Store, provider payment.Provider, cfg config.GatewayConfig, notify Notifier, log logger.ILogger) *PaymentService {
	return &PaymentService{store: store, provider: provider, cfg: cfg, notify: notify, log: log}
}

// payableBooking loads a booking the actor may pay for.
func (s *PaymentService) payableBooking(ctx context.Context, actor domain.Actor, bookingID uint) (*models.Booking, error) {
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if b.ClientID != actor.UserID {
		return nil, domain.Forbidden("only the client of this booking can pay")
	}
	if b.Status == domain.StatusCancelled {
		return nil, domain.Precondition("booking is cancelled")
	}
	if b.PaymentCompleted {
		return nil, domain.Conflict("booking is already paid")
	}
	return b, nil
}

// CreateCash records that the client will pay in cash. The booking stays unpaid until verified.
func (s *PaymentService) CreateCash(ctx context.Context, actor domain.Actor, bookingID uint) (*models.Payment, error) {
	b, err := s.payableBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.Payments.FindPending(ctx, b.ID, domain.PaymentMethodCash)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find pending cash payment: %w", err)
	}
	p := &models.Payment{
		BookingID:   b.ID,
		PayerID:     actor.UserID,
		Method:      domain.PaymentMethodCash,
		AmountCents: b.TotalAmountCents,
		Currency:    s.cfg.Currency,
		Status:      domain.PaymentPending,
	}
	if err := s.store.Payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create cash payment: %w", err)
	}
	s.log.Info("cash payment created", logger.Uint("payment_id", p.ID), logger.Uint("booking_id", b.ID), logger.Int64("amount_cents", p.AmountCents))
	return p, nil
}

// VerifyCash confirms a pending cash payment was collected.
func (s *PaymentService) VerifyCash(ctx context.Context, actor domain.Actor, paymentID uint) (*models.Payment, error) {
	p, err := s.store.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookupErr(err, "payment")
	}
	b, err := s.store.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !actor.IsAdmin() && !(actor.IsWorker() && b.AssignedTo(actor.UserID)) {
		return nil, domain.Forbidden("only the assigned worker or an admin can verify cash")
	}
	if b.PaymentCompleted {
		return nil, domain.Conflict("booking is already paid")
	}
	if p.Method != domain.PaymentMethodCash {
		return nil, domain.Validation("payment %d is not a cash payment", p.ID)
	}
	if p.Status != domain.PaymentPending {
		return nil, domain.Precondition("no pending cash payment to verify")
	}
	if err := s.markPaid(ctx, p, b, "", actor); err != nil {
		return nil, err
	}
	return s.store.Payments.GetByID(ctx, p.ID)
}

// InitGateway opens a hosted checkout session for the booking's current total.
func (s *PaymentService) InitGateway(ctx context.Context, actor domain.Actor, bookingID uint) (*GatewaySession, error) {
	b, err := s.payableBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if b.TotalAmountCents <= 0 {
		return nil, domain.Precondition("booking has nothing to pay")
	}
	client, err := s.store.Users.GetByID(ctx, b.ClientID)
	if err != nil {
		return nil, lookupErr(err, "client")
	}

	txnID := NewTransactionID(b.ID)
	p := &models.Payment{
		BookingID:     b.ID,
		PayerID:       actor.UserID,
		Method:        domain.PaymentMethodGateway,
		TransactionID: &txnID,
		AmountCents:   b.TotalAmountCents,
		Currency:      s.cfg.Currency,
		Status:        domain.PaymentPending,
	}
	if err := s.store.Payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create gateway payment: %w", err)
	}

	base := strings.TrimRight(s.cfg.CallbackBaseURL, "/") + "/api/v1/payments/gateway/"
	resp, err := s.provider.InitiatePayment(ctx, payment.PaymentRequest{
		TransactionID: txnID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Description:   fmt.Sprintf("Booking #%d", b.ID),
		CustomerName:  displayName(client),
		CustomerEmail: client.Email,
		CustomerPhone: client.Phone,
		SuccessURL:    base + "success",
		FailURL:       base + "fail",
		CancelURL:     base + "cancel",
		IPNURL:        base + "ipn",
	})
	if err != nil {
		// the gateway holds no state for this attempt, so the row goes too
		if derr := s.store.Payments.Delete(ctx, p.ID); derr != nil {
			s.log.Error("failed to remove payment after gateway init error", logger.Uint("payment_id", p.ID), logger.Error(derr))
		}
		s.log.Warning("gateway init failed", logger.Uint("booking_id", b.ID), logger.Error(err))
		return nil, domain.Gateway("failed to initiate payment")
	}

	if resp.Raw != "" {
		if _, err := s.store.Payments.Swap(ctx, p.ID, []string{domain.PaymentPending}, map[string]interface{}{"metadata": resp.Raw}); err != nil {
			s.log.Warning("failed to store gateway response", logger.Uint("payment_id", p.ID), logger.Error(err))
		}
	}
	s.log.Info("gateway payment initiated", logger.Uint("payment_id", p.ID), logger.String("transaction_id", txnID))
	return &GatewaySession{
		PaymentID:     p.ID,
		TransactionID: txnID,
		RedirectURL:   resp.RedirectURL,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
	}, nil
}

// GatewaySuccess handles the browser return after checkout. The gateway is asked
// to confirm the transaction; the redirect alone never marks anything paid.
func (s *PaymentService) GatewaySuccess(ctx context.Context, txnID, valID string) (*models.Payment, error) {
	p, err := s.byTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentPaid {
		return p, nil
	}
	return s.confirm(ctx, p, valID)
}

// GatewayIPN handles the gateway's server-to-server notification, which may be delivered more than once.
func (s *PaymentService) GatewayIPN(ctx context.Context, txnID, valID, status string) (*models.Payment, error) {
	p, err := s.byTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentPaid {
		s.log.Debug("duplicate ipn ignored", logger.String("transaction_id", txnID))
		return p, nil
	}
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "VALID", "VALIDATED":
		return s.confirm(ctx, p, valID)
	case "CANCELLED":
		return s.settle(ctx, p, domain.PaymentCancelled)
	default:
		return s.settle(ctx, p, domain.PaymentFailed)
	}
}

func (s *PaymentService) GatewayFail(ctx context.Context, txnID string) (*models.Payment, error) {
	p, err := s.byTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, p, domain.PaymentFailed)
}

func (s *PaymentService) GatewayCancel(ctx context.Context, txnID string) (*models.Payment, error) {
	p, err := s.byTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, p, domain.PaymentCancelled)
}

// Refund reverses a paid payment and the booking's paid flag together.
func (s *PaymentService) Refund(ctx context.Context, actor domain.Actor, paymentID uint, reason string) (*models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, domain.Forbidden("admin access required")
	}
	p, err := s.store.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookupErr(err, "payment")
	}
	if p.Status == domain.PaymentRefunded {
		return p, nil
	}
	if p.Status != domain.PaymentPaid {
		return nil, domain.Precondition("only paid payments can be refunded")
	}
	b, err := s.store.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	now := time.Now().UTC()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.Payments.Swap(ctx, p.ID, []string{domain.PaymentPaid}, map[string]interface{}{
			"status":      domain.PaymentRefunded,
			"refunded_at": now,
		})
		if err != nil {
			return fmt.Errorf("refund payment: %w", err)
		}
		if !ok {
			return domain.Conflict("payment changed concurrently")
		}
		if _, err := tx.Bookings.SetPaymentCompleted(ctx, b.ID, false); err != nil {
			return fmt.Errorf("clear booking paid flag: %w", err)
		}
		return s.audit(ctx, tx, &actor.UserID, "payment.refunded", p, map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment refunded", logger.Uint("payment_id", p.ID), logger.Uint("booking_id", b.ID))
	s.notify.Enqueue(Task{
		UserID: p.PayerID, Type: domain.NotifyPaymentRefunded, BookingID: b.ID,
		Title: "Payment refunded", Body: fmt.Sprintf("Your payment of %s %s was refunded", payment.FormatAmount(p.AmountCents), p.Currency),
	})
	return s.store.Payments.GetByID(ctx, p.ID)
}

func (s *PaymentService) ListForBooking(ctx context.Context, actor domain.Actor, bookingID uint) ([]models.Payment, error) {
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !actor.IsAdmin() && !b.IsParticipant(actor.UserID) {
		return nil, domain.Forbidden("not a participant of this booking")
	}
	list, err := s.store.Payments.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return list, nil
}

func (s *PaymentService) byTransaction(ctx context.Context, txnID string) (*models.Payment, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return nil, domain.Validation("tran_id is required")
	}
	p, err := s.store.Payments.GetByTransactionID(ctx, txnID)
	if err != nil {
		return nil, lookupErr(err, "payment")
	}
	return p, nil
}

// confirm validates a pending gateway payment with the provider and settles it.
func (s *PaymentService) confirm(ctx context.Context, p *models.Payment, valID string) (*models.Payment, error) {
	if p.Status != domain.PaymentPending {
		return nil, domain.Precondition(fmt.Sprintf("payment is %s", p.Status))
	}
	ref := strings.TrimSpace(valID)
	if ref == "" {
		ref = *p.TransactionID
	}
	v, err := s.provider.VerifyPayment(ctx, ref)
	if err != nil {
		s.log.Warning("gateway validation failed", logger.Uint("payment_id", p.ID), logger.Error(err))
		return nil, domain.Gateway("failed to validate payment")
	}
	if !v.Paid() || v.AmountCents != p.AmountCents || (v.Currency != "" && !strings.EqualFold(v.Currency, p.Currency)) {
		s.log.Warning("gateway validation rejected",
			logger.Uint("payment_id", p.ID), logger.String("status", v.Status),
			logger.Int64("amount_cents", v.AmountCents), logger.Int64("expected_cents", p.AmountCents))
		if _, err := s.settle(ctx, p, domain.PaymentFailed); err != nil {
			return nil, err
		}
		return nil, domain.Precondition("payment could not be validated")
	}
	b, err := s.store.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	validation := v.ValidationRef
	if validation == "" {
		validation = ref
	}
	if err := s.markPaid(ctx, p, b, validation, domain.Actor{}); err != nil {
		// a concurrent callback may have won
		if cur, gerr := s.store.Payments.GetByID(ctx, p.ID); gerr == nil && cur.Status == domain.PaymentPaid {
			return cur, nil
		}
		if domain.IsKind(err, domain.KindConflict) {
			s.failCaptured(ctx, p, validation)
		}
		return nil, err
	}
	return s.store.Payments.GetByID(ctx, p.ID)
}

// failCaptured closes a gateway payment the provider confirmed after another
// payment already settled the booking. The money was taken, so the row is
// failed and flagged for refund in the audit log.
func (s *PaymentService) failCaptured(ctx context.Context, p *models.Payment, validationRef string) {
	s.log.Warning("payment captured after booking was already paid",
		logger.Uint("payment_id", p.ID), logger.Uint("booking_id", p.BookingID), logger.String("validation_ref", validationRef))
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.Payments.Swap(ctx, p.ID, []string{domain.PaymentPending}, map[string]interface{}{
			"status":         domain.PaymentFailed,
			"validation_ref": validationRef,
		})
		if err != nil {
			return fmt.Errorf("fail captured payment: %w", err)
		}
		if !ok {
			return nil
		}
		return s.audit(ctx, tx, nil, "payment.needs_refund", p, map[string]interface{}{"validation_ref": validationRef})
	})
	if err != nil {
		s.log.Error("failed to settle captured payment", logger.Uint("payment_id", p.ID), logger.Error(err))
	}
}

// markPaid flips the payment and the booking flag in one transaction.
func (s *PaymentService) markPaid(ctx context.Context, p *models.Payment, b *models.Booking, validationRef string, actor domain.Actor) error {
	now := time.Now().UTC()
	set := map[string]interface{}{"status": domain.PaymentPaid, "paid_at": now}
	if validationRef != "" {
		set["validation_ref"] = validationRef
	}
	var by *uint
	if actor.UserID != 0 {
		by = &actor.UserID
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		n, err := tx.Payments.CountPaid(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("count paid: %w", err)
		}
		if n > 0 {
			return domain.Conflict("booking is already paid")
		}
		ok, err := tx.Payments.Swap(ctx, p.ID, []string{domain.PaymentPending}, set)
		if err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if !ok {
			return domain.Conflict("payment changed concurrently")
		}
		ok, err = tx.Bookings.SetPaymentCompleted(ctx, b.ID, true)
		if err != nil {
			return fmt.Errorf("set booking paid flag: %w", err)
		}
		if !ok {
			return domain.Conflict("booking is already paid")
		}
		return s.audit(ctx, tx, by, "payment.paid", p, map[string]interface{}{"method": p.Method})
	})
	if err != nil {
		return err
	}
	s.log.Info("payment confirmed", logger.Uint("payment_id", p.ID), logger.Uint("booking_id", b.ID), logger.String("method", p.Method))
	for _, uid := range otherParticipants(b, 0) {
		s.notify.Enqueue(Task{
			UserID: uid, Type: domain.NotifyPaymentConfirmed, BookingID: b.ID,
			Title: "Payment confirmed",
			Body:  fmt.Sprintf("Payment of %s %s received", payment.FormatAmount(p.AmountCents), p.Currency),
		})
	}
	return nil
}

// settle moves a pending payment to a terminal non-paid status. Paid payments are left alone.
func (s *PaymentService) settle(ctx context.Context, p *models.Payment, to string) (*models.Payment, error) {
	if p.Status == domain.PaymentPaid || p.Status == to {
		return p, nil
	}
	ok, err := s.store.Payments.Swap(ctx, p.ID, []string{domain.PaymentPending}, map[string]interface{}{"status": to})
	if err != nil {
		return nil, fmt.Errorf("settle payment: %w", err)
	}
	if ok {
		s.log.Info("payment settled", logger.Uint("payment_id", p.ID), logger.String("status", to))
	}
	return s.store.Payments.GetByID(ctx, p.ID)
}

func (s *PaymentService) audit(ctx context.Context, tx *repository.Store, userID *uint, action string, p *models.Payment, meta map[string]interface{}) error {
	meta["booking_id"] = p.BookingID
	meta["amount_cents"] = p.AmountCents
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	if err := tx.Audit.Create(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "payment",
		ResourceID: strconv.FormatUint(uint64(p.ID), 10),
		Metadata:   string(raw),
	}); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// NewTransactionID returns a gateway transaction id scoped to the booking.
func NewTransactionID(bookingID uint) string {
	return fmt.Sprintf("bk%d-%s", bookingID, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
