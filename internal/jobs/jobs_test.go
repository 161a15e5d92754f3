package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRecorder struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (r *runRecorder) JobRun(job string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string][]error)
	}
	r.runs[job] = append(r.runs[job], err)
}

type fakePurger struct {
	n   int64
	err error
}

func (f fakePurger) PurgeExpired(context.Context) (int64, error) { return f.n, f.err }

type fakePruner struct {
	idle time.Duration
}

func (f *fakePruner) Prune(idle time.Duration) int {
	f.idle = idle
	return 3
}

func TestRunOnce_RecordsOutcome(t *testing.T) {
	rec := &runRecorder{}
	s := NewScheduler(rec, time.Second)

	s.runOnce(PurgeOTPs(fakePurger{n: 2}))
	s.runOnce(PurgeOTPs(fakePurger{err: errors.New("db down")}))

	require.Len(t, rec.runs["purge_otp"], 2)
	assert.NoError(t, rec.runs["purge_otp"][0])
	assert.Error(t, rec.runs["purge_otp"][1])
}

func TestPruneLimiters(t *testing.T) {
	pruner := &fakePruner{}
	job := PruneLimiters(pruner, 15*time.Minute)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 15*time.Minute, pruner.idle)
}

func TestAdd_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil, 0)
	err := s.Add(Job{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
	assert.NoError(t, s.Add(PurgeOTPs(fakePurger{})))
}

func TestRun_StopsWithContext(t *testing.T) {
	s := NewScheduler(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
