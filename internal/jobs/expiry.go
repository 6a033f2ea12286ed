package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const sweepTimeout = 30 * time.Second

// SessionExpirer is implemented by *service.SessionService.
type SessionExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ExpiryJob periodically cancels sessions that were never picked up.
type ExpiryJob struct {
	sessions SessionExpirer
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewExpiryJob(sessions SessionExpirer, interval time.Duration) *ExpiryJob {
	return &ExpiryJob{
		sessions: sessions,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *ExpiryJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("session expiry job started")
}

// Stop waits for an in-flight sweep to finish.
func (j *ExpiryJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("session expiry job stopped")
	})
}

func (j *ExpiryJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpiryJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	count, err := j.sessions.ExpireStale(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to expire stale sessions")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("expired stale sessions")
	}
}
