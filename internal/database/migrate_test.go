package database

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	var versions []uint
	v, err := src.First()
	require.NoError(t, err)
	for {
		versions = append(versions, v)

		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "version %d has no up migration", v)
		_ = up.Close()

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has no down migration", v)
		_ = down.Close()

		v, err = src.Next(v)
		if err != nil {
			break
		}
	}

	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestEmbeddedMigrations_Content(t *testing.T) {
	tests := []struct {
		file string
		want []string
	}{
		{"migrations/000001_create_tenants.up.sql", []string{"CREATE TABLE IF NOT EXISTS tenants", "settings JSONB"}},
		{"migrations/000002_create_plans.up.sql", []string{"monthly_price NUMERIC", "'starter'", "'enterprise'"}},
		{"migrations/000003_create_usage_daily.up.sql", []string{"voice_seconds BIGINT", "UNIQUE (tenant_id, date)"}},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := migrationsFS.ReadFile(tt.file)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, string(data), w)
			}
		})
	}
}

func TestMigrateLogger(t *testing.T) {
	var buf bytes.Buffer
	l := migrateLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Printf("Start buffering %d/u %s\n", 1, "create_tenants")

	assert.False(t, l.Verbose())
	assert.Contains(t, buf.String(), `msg="Start buffering 1/u create_tenants"`)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("ping without deadline")
	}
	return p.err
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, HealthCheck(context.Background(), fakePinger{}))

	err := HealthCheck(context.Background(), fakePinger{err: io.ErrUnexpectedEOF})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorContains(t, err, "database unhealthy")
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/eventcore")

	assert.Equal(t, "postgres://localhost/eventcore", cfg.DSN)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Less(t, cfg.MinConns, cfg.MaxConns)
}
