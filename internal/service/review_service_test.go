package service_test

import (
	"context"
	"testing"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/service"
	"fieldserve/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestCreateReviewGates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	stranger := testutil.CreateClient(t, e.db, "s@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	other := testutil.CreateWorker(t, e.db, "o@example.com", testutil.WorkerOpts{})
	at := testutil.NextWeekday(time.Monday, 10, 0)
	done := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at, domain.StatusCompleted, 1000)
	active := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at.Add(3*time.Hour), domain.StatusInProgress, 1000)

	cases := []struct {
		name  string
		actor domain.Actor
		in    service.CreateReviewInput
		kind  domain.Kind
	}{
		{"rating too low", testutil.Actor(client), service.CreateReviewInput{BookingID: done.ID, WorkerID: w.ID, Rating: 0}, domain.KindValidation},
		{"rating too high", testutil.Actor(client), service.CreateReviewInput{BookingID: done.ID, WorkerID: w.ID, Rating: 6}, domain.KindValidation},
		{"unknown booking", testutil.Actor(client), service.CreateReviewInput{BookingID: 9999, WorkerID: w.ID, Rating: 4}, domain.KindNotFound},
		{"not completed", testutil.Actor(client), service.CreateReviewInput{BookingID: active.ID, WorkerID: w.ID, Rating: 4}, domain.KindPrecondition},
		{"not the client", testutil.Actor(stranger), service.CreateReviewInput{BookingID: done.ID, WorkerID: w.ID, Rating: 4}, domain.KindForbidden},
		{"wrong worker", testutil.Actor(client), service.CreateReviewInput{BookingID: done.ID, WorkerID: other.ID, Rating: 4}, domain.KindPrecondition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.reviews.CreateReview(ctx, tc.actor, tc.in)
			require.True(t, domain.IsKind(err, tc.kind), "got %v", err)
		})
	}
	require.False(t, testutil.Reload(t, e.db, done.ID).HasReview)
}

func TestCreateReviewUpdatesAggregate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, e.db, "c@example.com")
	w := testutil.CreateWorker(t, e.db, "w@example.com", testutil.WorkerOpts{})
	at := testutil.NextWeekday(time.Monday, 10, 0)
	first := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at, domain.StatusCompleted, 1000)
	second := testutil.CreateBooking(t, e.db, client.ID, &w.ID, at.Add(3*time.Hour), domain.StatusCompleted, 1000)

	rv, err := e.reviews.CreateReview(ctx, testutil.Actor(client), service.CreateReviewInput{
		BookingID: first.ID, WorkerID: w.ID, Rating: 5, Comment: "  quick and tidy ",
	})
	require.NoError(t, err)
	require.Equal(t, "quick and tidy", rv.Comment)
	require.True(t, testutil.Reload(t, e.db, first.ID).HasReview)

	_, err = e.reviews.CreateReview(ctx, testutil.Actor(client), service.CreateReviewInput{BookingID: first.ID, WorkerID: w.ID, Rating: 1})
	require.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = e.reviews.CreateReview(ctx, testutil.Actor(client), service.CreateReviewInput{BookingID: second.ID, WorkerID: w.ID, Rating: 2})
	require.NoError(t, err)

	profile, err := e.store.Workers.GetProfile(ctx, w.ID)
	require.NoError(t, err)
	require.InDelta(t, 3.5, profile.AverageRating, 0.001)
	require.Equal(t, 2, profile.RatingCount)

	list, err := e.reviews.ListWorkerReviews(ctx, w.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = e.reviews.ListWorkerReviews(ctx, client.ID, 10, 0)
	require.True(t, domain.IsKind(err, domain.KindNotFound))
	require.Contains(t, e.notify.Types(), domain.NotifyNewReview)
}
