package bootstrap

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/studiobot/core/config"
	coredatabase "github.com/m3rciful/studiobot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabaseRunsSeeders(t *testing.T) {
	var seeded atomic.Int32
	seed := SeederFunc(func(context.Context) error { seeded.Add(1); return nil })

	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not run without database config")
			return nil, nil
		},
		Seeders: []Seeder{seed, seed, nil, seed},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.Equal(t, int32(3), seeded.Load())
	assert.NoError(t, res.Close())
}

func TestRunStopsOnMigrationError(t *testing.T) {
	boom := errors.New("dirty")
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Host: "db"},
		LoggerInit: noLogger,
		Migrate:    func(context.Context, coredatabase.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRunSeedersCancelsOnFailure(t *testing.T) {
	boom := errors.New("sheet missing")
	err := RunSeeders(context.Background(),
		SeederFunc(func(context.Context) error { return boom }),
		SeederFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	assert.ErrorIs(t, err, boom)
}
