package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/authcore/internal/orm"
)

func TestScheduler_RunsEnabledTaskRepeatedly(t *testing.T) {
	s := New(orm.NewMemoryPort())
	var runs int32

	s.RegisterCleanupTask(CleanupTask{
		Name:       "expired-codes",
		PluginName: "email-password",
		IntervalMs: 20,
		Enabled:    true,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) CleanupResult {
			atomic.AddInt32(&runs, 1)
			return CleanupResult{Cleaned: 1}
		},
	})

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond,
		"P8-adjacent: an enabled task must fire repeatedly on its own interval")
}

func TestScheduler_DisabledTaskNeverRuns(t *testing.T) {
	s := New(orm.NewMemoryPort())
	var runs int32

	s.RegisterCleanupTask(CleanupTask{
		Name:       "disabled-task",
		IntervalMs: 10,
		Enabled:    false,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) CleanupResult {
			atomic.AddInt32(&runs, 1)
			return CleanupResult{}
		},
	})

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
}

func TestScheduler_PanicInOneTaskDoesNotAffectOthers(t *testing.T) {
	s := New(orm.NewMemoryPort())
	var okRuns int32

	s.RegisterCleanupTask(CleanupTask{
		Name:       "flaky",
		IntervalMs: 10,
		Enabled:    true,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) CleanupResult {
			panic("boom")
		},
	})
	s.RegisterCleanupTask(CleanupTask{
		Name:       "healthy",
		IntervalMs: 10,
		Enabled:    true,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) CleanupResult {
			atomic.AddInt32(&okRuns, 1)
			return CleanupResult{Cleaned: 1}
		},
	})

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&okRuns) >= 2 }, time.Second, 5*time.Millisecond,
		"P8: one task's failure must not affect other tasks or subsequent runs")
}

func TestScheduler_StartStop_IsRunning(t *testing.T) {
	s := New(orm.NewMemoryPort())
	assert.False(t, s.IsRunning())
	s.Start()
	assert.True(t, s.IsRunning())
	s.Stop()
	assert.False(t, s.IsRunning())
}
