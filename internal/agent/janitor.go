package agent

import (
	"context"
	"time"
)

const (
	defaultJanitorInterval = time.Minute
	// DefaultConversationIdle is how long an untouched conversation is kept.
	DefaultConversationIdle = 30 * time.Minute
)

// StartJanitor periodically drops expired cached responses and idle
// conversations. The returned channel is closed once ctx is done and the
// loop has exited.
func (s *Service) StartJanitor(ctx context.Context, interval, idle time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	if idle <= 0 {
		idle = DefaultConversationIdle
	}

	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		s.logger.Info("conversation janitor started", "interval", interval, "idle", idle)

		for {
			select {
			case <-ticker.C:
				s.sweep(idle)
			case <-ctx.Done():
				s.logger.Info("conversation janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func (s *Service) sweep(idle time.Duration) {
	expired := s.cache.Prune()
	dropped := s.PruneIdle(idle)
	if expired > 0 || dropped > 0 {
		s.logger.Debug("conversation janitor swept", "cache_entries", expired, "conversations", dropped)
	}
}
