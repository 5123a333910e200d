package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"github.com/sugarbait/phaeton-credsync/internal/config"
	"github.com/sugarbait/phaeton-credsync/internal/durable"
	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// CheckResult is one row of the doctor report.
type CheckResult struct {
	Name       string
	Status     string
	Message    string
	Suggestion string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, durable store and cache health",
		Long: `Verify that credsync is ready to resolve and save credentials.

This command checks:
- Configuration file validity
- Encryption key material
- Durable store connectivity
- OS keychain availability
- Local cache directory writability

With --migrate, the sql backend's schema is created if missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking credsync configuration...")

			results := make([]CheckResult, 0, 5)

			if err := cfg.Load(); err != nil {
				results = append(results, checkFailed("config", err))
				printChecks(results)
				return fmt.Errorf("configuration is not usable")
			}
			results = append(results, CheckResult{
				Name:    "config",
				Status:  "ok",
				Message: fmt.Sprintf("tenant %q, durable backend %q", cfg.ActiveTenant(), cfg.Definition.Durable.Type),
			})

			results = append(results, checkEncryptionKey(cfg))
			results = append(results, checkDurable(cmd.Context(), cfg, migrate))
			results = append(results, checkKeychain(cfg))
			results = append(results, checkCacheDir(cfg))

			printChecks(results)

			failed := 0
			for _, r := range results {
				if r.Status != "ok" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			cfg.Logger.Info("✓ All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create the sql schema if it does not exist")

	return cmd
}

func checkEncryptionKey(cfg *config.Config) CheckResult {
	keyID, _, err := cfg.EncryptionKey()
	if err != nil {
		return checkFailed("encryption", err)
	}
	return CheckResult{
		Name:    "encryption",
		Status:  "ok",
		Message: fmt.Sprintf("key %q loaded", keyID),
	}
}

func checkDurable(ctx context.Context, cfg *config.Config, migrate bool) CheckResult {
	store, err := durable.New(ctx, cfg.DurableOptions())
	if err != nil {
		return checkFailed("durable", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DurableTimeout())
	defer cancel()

	if err := store.Ping(pingCtx); err != nil {
		return checkFailed("durable", cserrors.StoreError(store.Name(), "ping", err))
	}

	msg := fmt.Sprintf("%s backend reachable", store.Name())
	if migrate {
		if sqlStore, ok := store.(*durable.SQLStore); ok {
			if err := sqlStore.EnsureSchema(pingCtx); err != nil {
				return checkFailed("durable", fmt.Errorf("schema migration failed: %w", err))
			}
			msg += ", schema ensured"
		}
	}
	return CheckResult{Name: "durable", Status: "ok", Message: msg}
}

// checkKeychain writes and removes a probe entry to confirm the OS keychain
// works for the configured service.
func checkKeychain(cfg *config.Config) CheckResult {
	service := cfg.Definition.Cache.KeyringService
	if service == "" {
		service = tier.DefaultKeyringService
	}

	probe := fmt.Sprintf("doctor-probe-%d", time.Now().UnixNano())
	if err := keyring.Set(service, probe, "ok"); err != nil {
		return CheckResult{
			Name:       "keychain",
			Status:     "error",
			Message:    err.Error(),
			Suggestion: "Without a keychain the local cache cannot hold secrets; resolution still works via the durable store",
		}
	}
	_ = keyring.Delete(service, probe)
	return CheckResult{
		Name:    "keychain",
		Status:  "ok",
		Message: fmt.Sprintf("service %q writable", service),
	}
}

func checkCacheDir(cfg *config.Config) CheckResult {
	dir := cfg.Definition.Cache.Dir
	if dir == "" {
		dir = tier.DefaultCacheDir()
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return CheckResult{
			Name:       "cache dir",
			Status:     "error",
			Message:    err.Error(),
			Suggestion: "Set cache.dir in credsync.yaml to a writable location",
		}
	}
	return CheckResult{Name: "cache dir", Status: "ok", Message: dir}
}

func checkFailed(name string, err error) CheckResult {
	result := CheckResult{Name: name, Status: "error", Message: err.Error()}
	if ue, ok := err.(cserrors.UserError); ok && ue.Suggestion != "" {
		result.Message = ue.Message
		result.Suggestion = ue.Suggestion
	}
	if ce, ok := err.(cserrors.ConfigError); ok && ce.Suggestion != "" {
		result.Message = ce.Message
		result.Suggestion = ce.Suggestion
	}
	return result
}

func printChecks(results []CheckResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "CHECK\tSTATUS\tDETAILS")
	for _, r := range results {
		glyph := "✓"
		if r.Status != "ok" {
			glyph = "✗"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\n", r.Name, glyph, r.Status, r.Message)
		if r.Suggestion != "" {
			fmt.Fprintf(w, "\t\t💡 %s\n", r.Suggestion)
		}
	}
}
