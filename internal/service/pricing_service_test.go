package service_test

import (
	"context"
	"math"
	"testing"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/service"
	"fieldserve/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestProposeItemsFromAcceptedAndInProgress(t *testing.T) {
	for _, from := range []domain.Status{domain.StatusAccepted, domain.StatusInProgress} {
		t.Run(string(from), func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			client := testutil.CreateClient(t, e.db, "c@example.com")
			w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
			b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), from, 10000)

			got, oi, err := e.pricing.ProposeItems(ctx, testutil.Actor(w), b.ID, service.ProposeItemsInput{
				Items: []models.LineItem{
					{Name: "washer", Quantity: 2, PriceCents: 1500},
					{Name: " valve ", PriceCents: 2000},
				},
				AdditionalNotes: "old parts corroded",
			})
			require.NoError(t, err)
			require.Equal(t, domain.StatusAwaiting, got.Status)
			require.Equal(t, int64(15000), got.TotalAmountCents)
			require.False(t, got.ItemsApproved)
			require.NotNil(t, got.WorkEndedAt)
			require.Equal(t, int64(5000), oi.TotalCents)
			require.False(t, oi.Verified)
			require.Equal(t, "valve", oi.Items[1].Name)
			require.Equal(t, 1, oi.Items[1].Quantity)
		})
	}
}

func TestProposeItemsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	other := testutil.CreateWorker(t, e.db, "o@example.com", testutil.WorkerOpts{})
	at := testutil.NextWeekday(time.Monday, 10, 0)
	items := service.ProposeItemsInput{Items: []models.LineItem{{Name: "pipe", Quantity: 1, PriceCents: 5000}}}

	for _, st := range []domain.Status{domain.StatusCompleted, domain.StatusCancelled, domain.StatusPending, domain.StatusAwaiting} {
		b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at, st, 1000)
		_, _, err := e.pricing.ProposeItems(ctx, testutil.Actor(w), b.ID, items)
		require.True(t, domain.IsKind(err, domain.KindPrecondition), "status %s", st)
		got := testutil.Reload(t, e.db, b.ID)
		require.Equal(t, st, got.Status)
		require.Equal(t, int64(1000), got.TotalAmountCents)
	}

	b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at, domain.StatusInProgress, 1000)
	_, _, err := e.pricing.ProposeItems(ctx, testutil.Actor(other), b.ID, items)
	require.True(t, domain.IsKind(err, domain.KindForbidden))
	_, _, err = e.pricing.ProposeItems(ctx, testutil.Actor(client), b.ID, items)
	require.True(t, domain.IsKind(err, domain.KindForbidden))

	for _, bad := range [][]models.LineItem{
		nil,
		{{Name: "", PriceCents: 1}},
		{{Name: "x", Quantity: -1, PriceCents: 1}},
		{{Name: "x", Quantity: 1, PriceCents: -1}},
	} {
		_, _, err = e.pricing.ProposeItems(ctx, testutil.Actor(w), b.ID, service.ProposeItemsInput{Items: bad})
		require.True(t, domain.IsKind(err, domain.KindValidation))
	}

	n, err := e.store.Items.CountByBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestApproveItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	stranger := testutil.CreateClient(t, e.db, "s@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusInProgress, 1000)

	_, err := e.pricing.ApproveItems(ctx, testutil.Actor(client), b.ID)
	require.True(t, domain.IsKind(err, domain.KindPrecondition), "nothing awaiting")

	_, _, err = e.pricing.ProposeItems(ctx, testutil.Actor(w), b.ID, service.ProposeItemsInput{
		Items: []models.LineItem{{Name: "pipe", Quantity: 1, PriceCents: 5000}},
	})
	require.NoError(t, err)

	_, err = e.pricing.ApproveItems(ctx, testutil.Actor(w), b.ID)
	require.True(t, domain.IsKind(err, domain.KindForbidden))
	_, err = e.pricing.ApproveItems(ctx, testutil.Actor(stranger), b.ID)
	require.True(t, domain.IsKind(err, domain.KindForbidden))

	got, err := e.pricing.ApproveItems(ctx, testutil.Actor(client), b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
	require.True(t, got.ItemsApproved)
	require.Equal(t, int64(6000), got.TotalAmountCents)

	items, err := e.pricing.ListItems(ctx, testutil.Actor(w), b.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].Verified)

	again, err := e.pricing.ApproveItems(ctx, testutil.Actor(client), b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, again.Status)

	_, err = e.bookings.Complete(ctx, testutil.Actor(client), b.ID)
	require.True(t, domain.IsKind(err, domain.KindPrecondition))
}

func TestDirectCompleteRefusedWhileItemsExist(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusInProgress, 0)
	require.NoError(t, e.db.Create(&models.OrderItem{BookingID: b.ID, Items: []models.LineItem{{Name: "x", Quantity: 1}}}).Error)

	_, err := e.bookings.Complete(ctx, testutil.Actor(w), b.ID)
	require.True(t, domain.IsKind(err, domain.KindPrecondition))
}

func TestCancelBeforeApproveWins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusInProgress, 0)

	_, err := e.bookings.WorkerCancel(ctx, testutil.Actor(w), b.ID, "client not home")
	require.NoError(t, err)
	_, _, err = e.pricing.ProposeItems(ctx, testutil.Actor(w), b.ID, service.ProposeItemsInput{
		Items: []models.LineItem{{Name: "pipe", Quantity: 1, PriceCents: 5000}},
	})
	require.True(t, domain.IsKind(err, domain.KindPrecondition))
	require.Equal(t, domain.StatusCancelled, testutil.Reload(t, e.db, b.ID).Status)
}

func TestProposeItemsCannotOverflowTotal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	at := testutil.NextWeekday(time.Monday, 10, 0)
	b := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at, domain.StatusInProgress, 10000)

	for _, bad := range [][]models.LineItem{
		{{Name: "bolt", Quantity: 1 << 62, PriceCents: 3}},
		{{Name: "bolt", Quantity: 1, PriceCents: math.MaxInt64}},
		make([]models.LineItem, 101),
	} {
		for i := range bad {
			if bad[i].Name == "" {
				bad[i] = models.LineItem{Name: "nut", Quantity: 1, PriceCents: 1}
			}
		}
		_, _, err := e.pricing.ProposeItems(ctx, testutil.Actor(w), b.ID, service.ProposeItemsInput{Items: bad})
		require.True(t, domain.IsKind(err, domain.KindValidation), "got %v", err)
	}

	// a total already near the limit refuses even bounded items
	huge := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at.Add(3*time.Hour), domain.StatusInProgress, math.MaxInt64-10)
	_, _, err := e.pricing.ProposeItems(ctx, testutil.Actor(w), huge.ID, service.ProposeItemsInput{
		Items: []models.LineItem{{Name: "bolt", Quantity: 1, PriceCents: 11}},
	})
	require.True(t, domain.IsKind(err, domain.KindValidation))

	got := testutil.Reload(t, e.db, b.ID)
	require.Equal(t, int64(10000), got.TotalAmountCents)
	require.Equal(t, domain.StatusInProgress, got.Status)
	require.Equal(t, int64(math.MaxInt64-10), testutil.Reload(t, e.db, huge.ID).TotalAmountCents)
	n, err := e.store.Items.CountByBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}
