package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const DefaultCooldown = time.Second

// CooldownGuard suppresses scans that follow the last attendance update of a child too closely.
// It is a time-window check only; concurrent scans are serialized by the Store.
type CooldownGuard struct {
	Threshold time.Duration
}

func NewCooldownGuard(threshold time.Duration) CooldownGuard {
	if threshold <= 0 {
		threshold = DefaultCooldown
	}
	return CooldownGuard{Threshold: threshold}
}

// Suppress reports whether a scan at now falls within the window opened by lastUpdate.
// A zero lastUpdate never suppresses.
func (g CooldownGuard) Suppress(lastUpdate, now time.Time) bool {
	if lastUpdate.IsZero() {
		return false
	}
	return now.Sub(lastUpdate) < g.Threshold
}

// ShouldSuppress looks up the latest attendance update of childID and applies the guard.
func (g CooldownGuard) ShouldSuppress(ctx context.Context, ledger Repository, childID string, now time.Time) (bool, error) {
	last, err := ledger.LastUpdatedAt(ctx, childID)
	if err != nil {
		return false, errors.Wrap(err, "reading last attendance update")
	}
	return g.Suppress(last, now), nil
}
