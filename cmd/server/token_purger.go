package main

import (
	"context"
	"log/slog"
	"time"
)

// refreshTokenPurger is the storage slice the purge worker needs.
type refreshTokenPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error)
}

type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) purgeTicker

// runTokenPurger sweeps expired refresh tokens until the context is
// cancelled so revoked sessions do not linger in the datastore.
func runTokenPurger(ctx context.Context, logger *slog.Logger, store refreshTokenPurger, interval time.Duration) {
	runTokenPurgerWithTicker(ctx, logger, store, interval, func(d time.Duration) purgeTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func runTokenPurgerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	store refreshTokenPurger,
	interval time.Duration,
	newTicker tickerFactory,
) {
	if store == nil || interval <= 0 {
		return
	}
	ticker := newTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			purged, err := store.PurgeExpiredRefreshTokens(ctx, time.Now().UTC())
			if err != nil {
				if logger != nil {
					logger.Error("failed to purge expired refresh tokens", "error", err)
				}
				continue
			}
			if purged > 0 && logger != nil {
				logger.Info("purged expired refresh tokens", "count", purged)
			}
		}
	}
}
