package credstore

import (
	"fmt"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// Guard enforces tenant isolation across the cache tiers. It owns every
// cache mutation that is not a save: the startup purge on tenant switch and
// the per-slot scrub the resolver requests when it finds a mismatched
// entry.
type Guard struct {
	marker    tier.Marker
	purgeable []tier.Tier
	logger    *logging.Logger
	metrics   *Metrics
}

// NewGuard creates a tenant guard over the given marker and tiers. The
// purgeable tiers are the ones that survive process restarts plus the
// session cache; the process-memory backup starts empty and needs no
// startup pass.
func NewGuard(marker tier.Marker, purgeable []tier.Tier, logger *logging.Logger) *Guard {
	return &Guard{
		marker:    marker,
		purgeable: purgeable,
		logger:    logger,
		metrics:   NewMetrics(),
	}
}

// Validate runs the startup tenant check. When the last-tenant marker
// matches the active tenant (or no marker exists yet) the caches are left
// alone; on a mismatch every entry not tagged with the active tenant is
// purged from the purgeable tiers, legacy un-tagged entries included. The
// marker is rewritten to the active tenant in both cases.
func (g *Guard) Validate(activeTenant string) (credential.GuardResult, error) {
	if activeTenant == "" {
		return credential.GuardResult{}, fmt.Errorf("active tenant is required")
	}

	previous, err := g.marker.LastTenant()
	if err != nil {
		return credential.GuardResult{}, fmt.Errorf("failed to read tenant marker: %w", err)
	}

	if previous == "" || previous == activeTenant {
		if previous == "" {
			g.logger.Debug("No tenant marker found, claiming caches for tenant %s", activeTenant)
		}
		if err := g.marker.SetLastTenant(activeTenant); err != nil {
			return credential.GuardResult{}, fmt.Errorf("failed to write tenant marker: %w", err)
		}
		return credential.GuardResult{
			Status:         credential.GuardValidated,
			PreviousTenant: previous,
		}, nil
	}

	g.logger.Warn("Tenant switch detected (%s -> %s), clearing cached credentials", previous, activeTenant)

	cleared := 0
	for _, t := range g.purgeable {
		n, err := t.Purge(activeTenant)
		if err != nil {
			return credential.GuardResult{}, fmt.Errorf("failed to purge %s tier: %w", t.Name(), err)
		}
		if n > 0 {
			g.logger.Debug("Purged %d entries from %s tier", n, t.Name())
		}
		cleared += n
	}

	if err := g.marker.SetLastTenant(activeTenant); err != nil {
		return credential.GuardResult{}, fmt.Errorf("failed to write tenant marker: %w", err)
	}

	g.metrics.RecordGuardCleared(cleared)
	return credential.GuardResult{
		Status:         credential.GuardCleared,
		PreviousTenant: previous,
		Cleared:        cleared,
	}, nil
}

// ScrubSlot removes a single mismatched entry from a tier. Called by the
// resolver when it reads an entry whose tenant tag does not match the
// lookup key; resolution itself never mutates the tiers directly.
func (g *Guard) ScrubSlot(t tier.Tier, key credential.Key) {
	if err := t.Delete(key); err != nil {
		g.logger.Debug("Failed to scrub mismatched entry %s from %s tier: %v", key, t.Name(), err)
		return
	}
	g.logger.Debug("Scrubbed mismatched entry %s from %s tier", key, t.Name())
}
