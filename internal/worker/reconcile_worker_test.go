package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/service"
)

type fakeReconciler struct {
	mu     sync.Mutex
	limits []int
	result service.BatchResult
	err    error
}

func (f *fakeReconciler) ReconcilePending(_ context.Context, limit int) (service.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	return f.result, f.err
}

func (f *fakeReconciler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.limits)
}

type fakeLocker struct {
	held     bool
	err      error
	key      string
	ttl      time.Duration
	released bool
}

func (f *fakeLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	f.key, f.ttl = key, ttl
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		f.released = true
		return nil
	}, true, nil
}

var sweepCfg = config.ReconcileConfig{Enabled: true, IntervalSeconds: 1, BatchLimit: 7, LockKey: "sweep", LockTTLSeconds: 30}

func TestSweep_HoldsLeaseAroundBatch(t *testing.T) {
	rec := &fakeReconciler{result: service.BatchResult{Scanned: 3, Synced: 2}}
	lock := &fakeLocker{}
	w := NewReconcileWorker(rec, lock, sweepCfg, nil)

	result, ran, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, service.BatchResult{Scanned: 3, Synced: 2}, result)
	assert.Equal(t, []int{7}, rec.limits)
	assert.Equal(t, "sweep", lock.key)
	assert.Equal(t, 30*time.Second, lock.ttl)
	assert.True(t, lock.released)
}

func TestSweep_SkipsWhenLeaseHeld(t *testing.T) {
	rec := &fakeReconciler{}
	w := NewReconcileWorker(rec, &fakeLocker{held: true}, sweepCfg, nil)

	_, ran, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, rec.calls())
}

func TestSweep_LockErrorSkipsBatch(t *testing.T) {
	rec := &fakeReconciler{}
	w := NewReconcileWorker(rec, &fakeLocker{err: errors.New("redis down")}, sweepCfg, nil)

	_, ran, err := w.Sweep(context.Background())
	assert.Error(t, err)
	assert.False(t, ran)
	assert.Zero(t, rec.calls())
}

func TestSweep_NoLockerAndDefaultLimit(t *testing.T) {
	rec := &fakeReconciler{}
	cfg := sweepCfg
	cfg.BatchLimit = 0
	w := NewReconcileWorker(rec, nil, cfg, nil)

	_, ran, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []int{service.DefaultBatchLimit}, rec.limits)
}

func TestRun_StopsOnCancel(t *testing.T) {
	rec := &fakeReconciler{}
	w := NewReconcileWorker(rec, nil, sweepCfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return rec.calls() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRun_DisabledReturnsImmediately(t *testing.T) {
	rec := &fakeReconciler{}
	cfg := sweepCfg
	cfg.Enabled = false
	NewReconcileWorker(rec, nil, cfg, nil).Run(context.Background())
	assert.Zero(t, rec.calls())
}
