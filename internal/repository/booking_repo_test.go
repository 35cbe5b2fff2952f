package repository_test

import (
	"context"
	"testing"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/repository"
	"fieldserve/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestBookingSwapIsCompareAndSet(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	client := testutil.CreateClient(t, db, "c@example.com")
	x := testutil.CreateWorker(t, db, "x@example.com", testutil.WorkerOpts{})
	y := testutil.CreateWorker(t, db, "y@example.com", testutil.WorkerOpts{})
	b := testutil.CreateBooking(t, db, client.ID, nil, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusPending, 0)

	claim := func(w uint) bool {
		ok, err := store.Bookings.Swap(ctx, repository.StatusSwap{
			BookingID: b.ID,
			From:      []domain.Status{domain.StatusPending},
			ClaimBy:   &w,
			Set:       map[string]interface{}{"status": domain.StatusAccepted, "worker_id": w},
		})
		require.NoError(t, err)
		return ok
	}
	require.True(t, claim(x.ID))
	require.False(t, claim(y.ID))

	got := testutil.Reload(t, db, b.ID)
	require.Equal(t, domain.StatusAccepted, got.Status)
	require.True(t, got.AssignedTo(x.ID))

	ok, err := store.Bookings.Swap(ctx, repository.StatusSwap{
		BookingID:  b.ID,
		From:       []domain.Status{domain.StatusAccepted},
		AssignedTo: &y.ID,
		Set:        map[string]interface{}{"status": domain.StatusInProgress},
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCountBlockingWindow(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	client := testutil.CreateClient(t, db, "c@example.com")
	w := testutil.CreateWorker(t, db, "w@example.com", testutil.WorkerOpts{})
	at := testutil.NextWeekday(time.Tuesday, 12, 0)

	accepted := testutil.CreateBooking(t, db, client.ID, &w.ID, at, domain.StatusAccepted, 0)
	testutil.CreateBooking(t, db, client.ID, &w.ID, at.Add(30*time.Minute), domain.StatusPending, 0)
	testutil.CreateBooking(t, db, client.ID, &w.ID, at.Add(45*time.Minute), domain.StatusCancelled, 0)

	slot := 90 * time.Minute
	n, err := store.Bookings.CountBlocking(ctx, w.ID, at, at.Add(slot), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "the lower bound is inclusive")

	n, err = store.Bookings.CountBlocking(ctx, w.ID, at, at.Add(slot), accepted.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = store.Bookings.CountBlocking(ctx, w.ID, at.Add(-slot), at, 0)
	require.NoError(t, err)
	require.Zero(t, n, "the upper bound is exclusive")

	n, err = store.Bookings.CountBlocking(ctx, w.ID, at.Add(time.Minute), at.Add(slot), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReviewAggregate(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	w := testutil.CreateWorker(t, db, "w@example.com", testutil.WorkerOpts{})

	avg, count, err := store.Reviews.Aggregate(ctx, w.ID)
	require.NoError(t, err)
	require.Zero(t, avg)
	require.Zero(t, count)
}
