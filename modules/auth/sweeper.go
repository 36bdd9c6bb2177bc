package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oneuni/oneuni-backend/pkg/logger"
)

// Sweeper periodically deletes expired refresh tokens so the table does not
// grow without bound. Expiry checks on the request path never depend on it;
// the sweep is pure housekeeping.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper builds a sweeper running every interval.
func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, sweeping once per interval. Failures
// are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.svc.DeleteExpiredTokens(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "refresh token sweep failed", logger.Error(err))
				continue
			}
			if n > 0 {
				s.log.InfoContext(ctx, "swept expired refresh tokens", slog.Int64("deleted", n))
			}
		}
	}
}
