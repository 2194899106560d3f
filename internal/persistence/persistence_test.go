package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/abteilung-service/internal/config"
)

func TestPostgresWithoutDSN(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.New(core))
	require.NoError(t, err)

	assert.Nil(t, pg.PoolHandle())
	assert.NoError(t, pg.CheckSchema(context.Background()))
	assert.Error(t, pg.Ping(context.Background()))
	pg.Close()
	assert.Equal(t, 1, logs.FilterMessageSnippet("kept in memory").Len())
}

func TestNewRedis(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	assert.Nil(t, NewRedis(context.Background(), config.RedisConfig{}, "abteilung-service", logger))
	var disabled *Redis
	assert.Error(t, disabled.Ping(context.Background()))

	r := NewRedis(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"}, "abteilung-service", logger)
	require.NotNil(t, r)
	t.Cleanup(r.Close)
	assert.Equal(t, "abteilung-service", r.Client.Options().ClientName)

	warnings := logs.FilterMessage("unable to reach redis").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "127.0.0.1:1", warnings[0].ContextMap()["addr"])
}

func TestCheckSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("abteilung_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pg, err := NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 4}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, pg.Ping(ctx))

	err = pg.CheckSchema(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "departments, managers, employees")

	require.NoError(t, RunMigrations(ctx, pg.PoolHandle(), zap.NewNop()))
	assert.NoError(t, pg.CheckSchema(ctx))
}
