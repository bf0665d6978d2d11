package packages

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/dbtest"
	"github.com/aura-portal/backend/internal/models"
)

func usedOf(t *testing.T, repo *Repository, clientID uuid.UUID, kind string) int {
	t.Helper()
	p, err := repo.GetUsage(context.Background(), clientID)
	require.NoError(t, err)
	for _, it := range p.Items {
		if it.DeliverableType == kind {
			return it.Used
		}
	}
	t.Fatalf("type %s not in package", kind)
	return 0
}

func TestRepository_ConsumeStopsAtAllocation(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool, 2)
	ctx := context.Background()
	clientID := dbtest.Client(t, pool)

	metered, err := repo.Consume(ctx, clientID, "graphic")
	require.NoError(t, err)
	assert.False(t, metered, "no package means unmetered")

	_, err = repo.Upsert(ctx, UpsertParams{ClientID: clientID, Name: "Starter", MaxRevisions: 3,
		Items: []models.PackageItem{{DeliverableType: "graphic", Allocated: 2}}})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		metered, err = repo.Consume(ctx, clientID, "graphic")
		require.NoError(t, err)
		assert.True(t, metered)
	}
	metered, err = repo.Consume(ctx, clientID, "graphic")
	assert.ErrorIs(t, err, ErrPackageExhausted)
	assert.True(t, metered)
	assert.Equal(t, 2, usedOf(t, repo, clientID, "graphic"))

	metered, err = repo.Consume(ctx, clientID, "video")
	require.NoError(t, err)
	assert.False(t, metered, "types outside the package are unmetered")

	limit, err := repo.MaxRevisions(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, 3, limit)
	limit, err = repo.MaxRevisions(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, limit)
}

func TestRepository_ReleaseRespectsCycleReset(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool, 2)
	ctx := context.Background()
	clientID := dbtest.Client(t, pool)

	_, err := repo.Upsert(ctx, UpsertParams{ClientID: clientID, Name: "Starter", MaxRevisions: 2,
		Items: []models.PackageItem{{DeliverableType: "graphic", Allocated: 5}}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = repo.Consume(ctx, clientID, "graphic")
		require.NoError(t, err)
	}

	// consumed in the current cycle
	require.NoError(t, repo.Release(ctx, clientID, "graphic", time.Now().Add(time.Hour)))
	assert.Equal(t, 2, usedOf(t, repo, clientID, "graphic"))

	reset := time.Now().Add(2 * time.Hour)
	clients, err := repo.ResetCycles(ctx, reset)
	require.NoError(t, err)
	assert.Contains(t, clients, clientID)
	assert.Equal(t, 0, usedOf(t, repo, clientID, "graphic"))

	_, err = repo.Consume(ctx, clientID, "graphic")
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, clientID, "graphic", time.Now()), "consumed before the reset")
	assert.Equal(t, 1, usedOf(t, repo, clientID, "graphic"))
}

func TestRepository_UpsertKeepsUsage(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool, 2)
	ctx := context.Background()
	clientID := dbtest.Client(t, pool)

	_, err := repo.Upsert(ctx, UpsertParams{ClientID: clientID, Name: "Starter", MaxRevisions: 2,
		Items: []models.PackageItem{{DeliverableType: "graphic", Allocated: 5}, {DeliverableType: "video", Allocated: 1}}})
	require.NoError(t, err)
	_, err = repo.Consume(ctx, clientID, "graphic")
	require.NoError(t, err)

	p, err := repo.Upsert(ctx, UpsertParams{ClientID: clientID, Name: "Growth", MaxRevisions: 4,
		Items: []models.PackageItem{{DeliverableType: "graphic", Allocated: 10}}})
	require.NoError(t, err)
	assert.Equal(t, "Growth", p.Name)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 10, p.Items[0].Allocated)
	assert.Equal(t, 1, p.Items[0].Used)
}
