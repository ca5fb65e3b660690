package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// Purger is the part of UserService the sweeper needs.
type Purger interface {
	PurgeTokens(ctx context.Context) (int64, error)
}

// RunSweeper purges stale refresh tokens every interval until ctx ends.
// A non-positive interval disables it.
func RunSweeper(ctx context.Context, p Purger, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeTokens(ctx)
			if err != nil {
				logger.Error(ctx, "refresh token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "refresh tokens purged", "count", n)
			}
		}
	}
}
