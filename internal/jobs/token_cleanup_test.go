package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"auth_api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePurger struct {
	before []time.Time
	count  int64
	err    error
}

func (f *fakePurger) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.before = append(f.before, before)
	return f.count, f.err
}

func TestTokenCleanupRunOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	purger := &fakePurger{count: 3}
	job := NewTokenCleanupJob(purger, zap.New(core), &config.Config{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	job.RunOnce()

	require.Len(t, purger.before, 1)
	assert.Equal(t, fixed, purger.before[0])
	entries := logs.FilterMessage("Token cleanup run completed").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 3, entries[0].ContextMap()["tokens_deleted"])
}

func TestTokenCleanupRunOnceLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	job := NewTokenCleanupJob(&fakePurger{err: errors.New("db down")}, zap.New(core), &config.Config{})

	job.RunOnce()

	assert.Equal(t, 1, logs.FilterMessage("Token cleanup run failed").Len())
}

func TestTokenCleanupSchedule(t *testing.T) {
	disabled := NewTokenCleanupJob(&fakePurger{}, zap.NewNop(), &config.Config{})
	require.NoError(t, disabled.SetupAndStart())
	assert.Empty(t, disabled.cronScheduler.Entries())
	disabled.Stop()

	invalid := NewTokenCleanupJob(&fakePurger{}, zap.NewNop(), &config.Config{TokenCleanupSchedule: "not a schedule"})
	assert.Error(t, invalid.SetupAndStart())

	hourly := NewTokenCleanupJob(&fakePurger{}, zap.NewNop(), &config.Config{TokenCleanupSchedule: "@hourly"})
	require.NoError(t, hourly.SetupAndStart())
	assert.Len(t, hourly.cronScheduler.Entries(), 1)
	hourly.Stop()
}
