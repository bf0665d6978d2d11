// Package dbtest opens the Postgres database used by repository integration tests.
// Tests skip unless TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/config"
	"github.com/aura-portal/backend/pkg/database"
)

// EnvURL names the variable holding the test database URL.
const EnvURL = "TEST_DATABASE_URL"

// Pool connects to the test database and applies the migrations.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skip("Skipping integration test: " + EnvURL + " environment variable is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := database.NewPostgresPool(ctx, url, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, nil))
	return pool
}

// Client inserts a client of the seeded tenant with an empty wallet and removes it when the test ends.
func Client(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var id uuid.UUID
	err := pool.QueryRow(ctx, `INSERT INTO clients (tenant_id, name) VALUES ($1, $2) RETURNING id`,
		config.DefaultTenantID, "test "+t.Name()).Scan(&id)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO client_wallets (client_id) VALUES ($1)`, id)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM clients WHERE id = $1`, id)
	})
	return id
}
