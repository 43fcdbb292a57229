package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundpack/backend/internal/logging"
)

// Resolver walks an ordered tier chain until one yields bytes. Remote tiers
// come before the filesystem fallback; a tier failure of any kind only
// advances the chain, so the sole user-visible outcome of total exhaustion is
// absence.
type Resolver struct {
	tiers       []Tier
	tierTimeout time.Duration
	logger      *slog.Logger
}

// NewResolver builds a resolver over the given tiers in priority order.
// tierTimeout bounds each individual probe; a timed-out tier is treated the
// same as a failed one.
func NewResolver(tiers []Tier, tierTimeout time.Duration, logger *slog.Logger) *Resolver {
	if tierTimeout <= 0 {
		tierTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tiers: tiers, tierTimeout: tierTimeout, logger: logger}
}

// Resolve probes each tier for the key. ErrAbsent from a tier is a silent
// miss; other tier errors are logged and absorbed. Exhausting every tier
// returns ErrAbsent, which callers translate into a 404-equivalent outcome.
func (r *Resolver) Resolve(ctx context.Context, key string) (*Asset, error) {
	ctx, span := logging.StartSpan(ctx, "storage.resolve")
	defer span.End()

	for _, tier := range r.tiers {
		asset, err := r.resolveTier(ctx, tier, key)
		if err == nil {
			return asset, nil
		}
		if errors.Is(err, ErrAbsent) {
			continue
		}
		if ctx.Err() != nil {
			// The request itself is gone; stop probing on its behalf.
			return nil, ctx.Err()
		}
		r.logger.Warn("storage tier failed, trying next",
			"tier", tier.Name(),
			"key", key,
			"error", err,
		)
	}

	return nil, ErrAbsent
}

func (r *Resolver) resolveTier(ctx context.Context, tier Tier, key string) (*Asset, error) {
	tierCtx, cancel := context.WithTimeout(ctx, r.tierTimeout)
	defer cancel()

	return tier.Resolve(tierCtx, key)
}
