package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpireStale(ctx context.Context) (int, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return 2, c.err
}

func TestExpiryJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewExpiryJob(&countingExpirer{}, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("sweeps on start", func(t *testing.T) {
		expirer := &countingExpirer{}
		job := NewExpiryJob(expirer, time.Hour)

		job.Start()
		assert.Eventually(t, func() bool { return expirer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("sweeps on every tick", func(t *testing.T) {
		expirer := &countingExpirer{}
		job := NewExpiryJob(expirer, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return expirer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("keeps running after a failed sweep", func(t *testing.T) {
		expirer := &countingExpirer{err: errors.New("db down")}
		job := NewExpiryJob(expirer, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return expirer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("stop is idempotent and halts sweeps", func(t *testing.T) {
		expirer := &countingExpirer{}
		job := NewExpiryJob(expirer, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return expirer.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
		job.Stop()
		job.Stop()

		after := expirer.calls.Load()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, after, expirer.calls.Load())
	})
}
