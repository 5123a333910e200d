package commands

import (
	"context"
	"fmt"

	"github.com/sugarbait/phaeton-credsync/internal/cipher"
	"github.com/sugarbait/phaeton-credsync/internal/config"
	"github.com/sugarbait/phaeton-credsync/internal/credstore"
	"github.com/sugarbait/phaeton-credsync/internal/durable"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// stack is the wired credential engine behind every command: the durable
// store, the cache tiers and the resolver/writer/guard on top of them.
type stack struct {
	cfg      *config.Config
	store    durable.Store
	cipher   cipher.Cipher
	local    *tier.Local
	session  *tier.Session
	memory   *tier.Memory
	tiers    []tier.Tier
	guard    *credstore.Guard
	resolver *credstore.Resolver
	writer   *credstore.Writer
}

// buildStack loads configuration and assembles the engine. Commands that
// touch credentials run the tenant guard before using the result.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	keyID, key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	ciph, err := cipher.NewAESGCM(keyID, key)
	if err != nil {
		return nil, err
	}

	store, err := durable.New(ctx, cfg.DurableOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize durable store: %w", err)
	}

	local := tier.NewLocal(cfg.Definition.Cache.Dir, cfg.Definition.Cache.KeyringService, cfg.Logger)
	session := tier.NewSession(cfg.SessionTTL())
	memory := tier.NewMemory()
	tiers := []tier.Tier{local, session, memory}

	if cfg.Definition.Metrics.Enabled {
		credstore.InitMetrics()
	}

	// The process-memory tier starts empty, so only the persistent and
	// session tiers need the startup purge.
	guard := credstore.NewGuard(local, []tier.Tier{local, session}, cfg.Logger)

	return &stack{
		cfg:      cfg,
		store:    store,
		cipher:   ciph,
		local:    local,
		session:  session,
		memory:   memory,
		tiers:    tiers,
		guard:    guard,
		resolver: credstore.NewResolver(store, ciph, tiers, guard, cfg.DurableTimeout(), cfg.Logger),
		writer:   credstore.NewWriter(store, ciph, tiers, cfg.ActiveTenant(), cfg.DurableTimeout(), cfg.Logger),
	}, nil
}

// guardedStack builds the stack and runs the tenant guard, the required
// first step before any credential read or write.
func guardedStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	s, err := buildStack(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.Validate(cfg.ActiveTenant()); err != nil {
		return nil, fmt.Errorf("tenant guard failed: %w", err)
	}
	return s, nil
}
