//go:build integration

package dbsavepoint

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `CREATE TABLE orders (id serial primary key, total int)`)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return pool, cleanup
}

func TestAdapterCheckpointRollback(t *testing.T) {
	pool, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	a, err := Open(ctx, pool, []string{"orders"})
	require.NoError(t, err)
	defer a.Close(ctx)

	_, err = a.tx.Exec(ctx, `INSERT INTO orders (total) VALUES (100)`)
	require.NoError(t, err)

	tok, err := a.Checkpoint(ctx)
	require.NoError(t, err)

	_, err = a.tx.Exec(ctx, `INSERT INTO orders (total) VALUES (200)`)
	require.NoError(t, err)

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, obs["orders"].(map[string]interface{})["count"])

	require.NoError(t, a.Rollback(ctx, tok))

	obs, err = a.Observe(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, obs["orders"].(map[string]interface{})["count"])
}

func TestAdapterRollbackToOuterDiscardsInner(t *testing.T) {
	pool, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	a, err := Open(ctx, pool, []string{"orders"})
	require.NoError(t, err)
	defer a.Close(ctx)

	tokA, err := a.Checkpoint(ctx)
	require.NoError(t, err)
	_, err = a.Checkpoint(ctx)
	require.NoError(t, err)

	// tokA is no longer the innermost live savepoint; Postgres still accepts it.
	err = a.Rollback(ctx, tokA)
	assert.NoError(t, err, "ROLLBACK TO an outer savepoint is legal in Postgres and also invalidates the inner one")
}
