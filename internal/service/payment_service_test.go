package service_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// requirePaidInvariant checks the booking flag against the payment rows.
func requirePaidInvariant(t *testing.T, db *gorm.DB, bookingID uint) {
	t.Helper()
	var paid int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("booking_id = ? AND status = ?", bookingID, domain.PaymentPaid).Count(&paid).Error)
	require.LessOrEqual(t, paid, int64(1))
	require.Equal(t, paid == 1, testutil.Reload(t, db, bookingID).PaymentCompleted)
}

type payFixture struct {
	client, worker, admin *models.User
	booking               *models.Booking
}

func newPayFixture(t *testing.T, e *env, total int64) payFixture {
	t.Helper()
	f := payFixture{
		client: testutil.CreateClient(t, e.db, "c@example.com"),
		worker: testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{}),
		admin:  testutil.CreateAdmin(t, e.db, "a@example.com"),
	}
	f.booking = testutil.CreateBooking(t, e.db, f.client.ID, &f.worker.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusCompleted, total)
	return f
}

func TestCashPaymentVerifiedByWorker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 15000)

	p, err := e.payments.CreateCash(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, p.Status)
	require.Equal(t, int64(15000), p.AmountCents)
	requirePaidInvariant(t, e.db, f.booking.ID)

	again, err := e.payments.CreateCash(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, again.ID)

	_, err = e.payments.VerifyCash(ctx, testutil.Actor(f.client), p.ID)
	require.True(t, domain.IsKind(err, domain.KindForbidden))

	got, err := e.payments.VerifyCash(ctx, testutil.Actor(f.worker), p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	requirePaidInvariant(t, e.db, f.booking.ID)

	_, err = e.payments.VerifyCash(ctx, testutil.Actor(f.admin), p.ID)
	require.True(t, domain.IsKind(err, domain.KindConflict))
	_, err = e.payments.CreateCash(ctx, testutil.Actor(f.client), f.booking.ID)
	require.True(t, domain.IsKind(err, domain.KindConflict))

	logs, err := e.store.Audit.ListByResource(ctx, "payment", strconv.FormatUint(uint64(p.ID), 10))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "payment.paid", logs[0].Action)
	require.Equal(t, f.worker.ID, *logs[0].UserID)
	require.Contains(t, e.notify.Types(), domain.NotifyPaymentConfirmed)
}

func TestCashPaymentGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 1000)
	stranger := testutil.CreateClient(t, e.db, "s@example.com")

	_, err := e.payments.CreateCash(ctx, testutil.Actor(stranger), f.booking.ID)
	require.True(t, domain.IsKind(err, domain.KindForbidden))
	_, err = e.payments.CreateCash(ctx, testutil.Actor(f.client), 9999)
	require.True(t, domain.IsKind(err, domain.KindNotFound))

	cancelled := testutil.CreateBooking(t, e.db, f.client.ID, &f.worker.ID, testutil.NextWeekday(time.Tuesday, 10, 0), domain.StatusCancelled, 1000)
	_, err = e.payments.CreateCash(ctx, testutil.Actor(f.client), cancelled.ID)
	require.True(t, domain.IsKind(err, domain.KindPrecondition))

	sess, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	_, err = e.payments.VerifyCash(ctx, testutil.Actor(f.admin), sess.PaymentID)
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestGatewaySuccessThenDuplicateIPN(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 20000)

	sess, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	require.Equal(t, int64(20000), sess.AmountCents)
	require.Equal(t, "BDT", sess.Currency)
	require.Contains(t, sess.RedirectURL, sess.TransactionID)
	requirePaidInvariant(t, e.db, f.booking.ID)

	p, err := e.payments.GatewaySuccess(ctx, sess.TransactionID, "")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, p.Status)
	require.Equal(t, 1, e.gateway.Verified)
	requirePaidInvariant(t, e.db, f.booking.ID)

	for i := 0; i < 3; i++ {
		p, err = e.payments.GatewayIPN(ctx, sess.TransactionID, "val_"+sess.TransactionID, "VALID")
		require.NoError(t, err)
		require.Equal(t, domain.PaymentPaid, p.Status)
	}
	require.Equal(t, 1, e.gateway.Verified, "a paid payment is not re-validated")

	p, err = e.payments.GatewayFail(ctx, sess.TransactionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, p.Status)
	p, err = e.payments.GatewayCancel(ctx, sess.TransactionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, p.Status)
	requirePaidInvariant(t, e.db, f.booking.ID)

	confirmed := 0
	for _, tk := range e.notify.Tasks() {
		if tk.Type == domain.NotifyPaymentConfirmed {
			confirmed++
		}
	}
	require.Equal(t, 2, confirmed, "client and worker notified once")
}

func TestConcurrentGatewayCallbacksPayOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 5000)
	sess, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = e.payments.GatewaySuccess(ctx, sess.TransactionID, "")
			} else {
				_, _ = e.payments.GatewayIPN(ctx, sess.TransactionID, "", "VALID")
			}
		}(i)
	}
	wg.Wait()
	requirePaidInvariant(t, e.db, f.booking.ID)
	require.True(t, testutil.Reload(t, e.db, f.booking.ID).PaymentCompleted)
}

func TestGatewayInitFailureLeavesNoPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 5000)
	e.gateway.FailInit = true

	_, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.True(t, domain.IsKind(err, domain.KindGateway))

	var n int64
	require.NoError(t, e.db.Model(&models.Payment{}).Where("booking_id = ?", f.booking.ID).Count(&n).Error)
	require.Zero(t, n)
	requirePaidInvariant(t, e.db, f.booking.ID)
}

func TestGatewayInitRequiresAmount(t *testing.T) {
	e := newEnv(t)
	f := newPayFixture(t, e, 0)
	_, err := e.payments.InitGateway(context.Background(), testutil.Actor(f.client), f.booking.ID)
	require.True(t, domain.IsKind(err, domain.KindPrecondition))
}

func TestGatewayDeclinedValidationFailsPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 5000)
	sess, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	e.gateway.Declined[sess.TransactionID] = true

	_, err = e.payments.GatewaySuccess(ctx, sess.TransactionID, "")
	require.True(t, domain.IsKind(err, domain.KindPrecondition))

	list, err := e.payments.ListForBooking(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, domain.PaymentFailed, list[0].Status)
	requirePaidInvariant(t, e.db, f.booking.ID)

	// a fresh attempt is still possible
	_, err = e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
}

func TestGatewayIPNStatuses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 5000)

	sess, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	p, err := e.payments.GatewayIPN(ctx, sess.TransactionID, "", "CANCELLED")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCancelled, p.Status)

	sess, err = e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	p, err = e.payments.GatewayIPN(ctx, sess.TransactionID, "", "FAILED")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.Status)
	require.Zero(t, e.gateway.Verified)

	_, err = e.payments.GatewayIPN(ctx, "", "", "VALID")
	require.True(t, domain.IsKind(err, domain.KindValidation))
	_, err = e.payments.GatewayIPN(ctx, "bk1-unknown", "", "VALID")
	require.True(t, domain.IsKind(err, domain.KindNotFound))
	requirePaidInvariant(t, e.db, f.booking.ID)
}

func TestRefundReversesPaidFlag(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 5000)
	p, err := e.payments.CreateCash(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)

	_, err = e.payments.Refund(ctx, testutil.Actor(f.admin), p.ID, "too early")
	require.True(t, domain.IsKind(err, domain.KindPrecondition))

	_, err = e.payments.VerifyCash(ctx, testutil.Actor(f.admin), p.ID)
	require.NoError(t, err)

	_, err = e.payments.Refund(ctx, testutil.Actor(f.worker), p.ID, "no")
	require.True(t, domain.IsKind(err, domain.KindForbidden))

	got, err := e.payments.Refund(ctx, testutil.Actor(f.admin), p.ID, "service not delivered")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentRefunded, got.Status)
	require.NotNil(t, got.RefundedAt)
	requirePaidInvariant(t, e.db, f.booking.ID)
	require.False(t, testutil.Reload(t, e.db, f.booking.ID).PaymentCompleted)

	again, err := e.payments.Refund(ctx, testutil.Actor(f.admin), p.ID, "twice")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentRefunded, again.Status)

	logs, err := e.store.Audit.ListByResource(ctx, "payment", strconv.FormatUint(uint64(p.ID), 10))
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Contains(t, e.notify.Types(), domain.NotifyPaymentRefunded)
}

func TestGatewayCaptureAfterBookingPaidIsFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := newPayFixture(t, e, 8000)

	first, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)
	second, err := e.payments.InitGateway(ctx, testutil.Actor(f.client), f.booking.ID)
	require.NoError(t, err)

	p, err := e.payments.GatewaySuccess(ctx, first.TransactionID, "")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, p.Status)

	_, err = e.payments.GatewaySuccess(ctx, second.TransactionID, "")
	require.True(t, domain.IsKind(err, domain.KindConflict), "got %v", err)
	requirePaidInvariant(t, e.db, f.booking.ID)

	var late models.Payment
	require.NoError(t, e.db.First(&late, second.PaymentID).Error)
	require.Equal(t, domain.PaymentFailed, late.Status)

	var flagged int64
	require.NoError(t, e.db.Model(&models.AuditLog{}).
		Where("action = ? AND resource_id = ?", "payment.needs_refund", strconv.FormatUint(uint64(late.ID), 10)).
		Count(&flagged).Error)
	require.Equal(t, int64(1), flagged)

	// later callbacks for the failed attempt change nothing
	_, err = e.payments.GatewayIPN(ctx, second.TransactionID, "", "VALID")
	require.Error(t, err)
	requirePaidInvariant(t, e.db, f.booking.ID)
}
