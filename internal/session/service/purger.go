package service

import (
	"context"
	"time"
)

// RunPurger calls PurgeExpired every interval until ctx is cancelled. Failures are logged and
// the loop continues; PurgeExpired logs the rows it removes.
func (m *Manager) RunPurger(ctx context.Context, interval, grace time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := m.PurgeExpired(ctx, grace); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Msg("session purge failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
