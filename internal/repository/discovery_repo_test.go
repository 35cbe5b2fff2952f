package repository_test

import (
	"context"
	"testing"

	"fieldserve/internal/repository"
	"fieldserve/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestSearchWorkersAcrossAntimeridian(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	west := testutil.CreateWorker(t, db, "west@example.com", testutil.WorkerOpts{Latitude: 0, Longitude: -179.99})
	east := testutil.CreateWorker(t, db, "east@example.com", testutil.WorkerOpts{Latitude: 0, Longitude: 179.98})
	testutil.CreateWorker(t, db, "far@example.com", testutil.WorkerOpts{Latitude: 0, Longitude: -179.5})

	got, err := store.Discovery.SearchWorkers(ctx, repository.WorkerSearchFilter{Latitude: 0, Longitude: 179.99, RadiusKm: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.ElementsMatch(t, []uint{west.ID, east.ID}, []uint{got[0].WorkerID, got[1].WorkerID})
	for _, m := range got {
		require.Less(t, m.DistanceMeters, 10000.0)
	}

	got, err = store.Discovery.SearchWorkers(ctx, repository.WorkerSearchFilter{Latitude: 0, Longitude: -179.99, RadiusKm: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
}
