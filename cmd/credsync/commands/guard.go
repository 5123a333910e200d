package commands

import (
	"github.com/spf13/cobra"

	"github.com/sugarbait/phaeton-credsync/internal/config"
	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

func NewGuardCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Validate caches against the active tenant",
		Long: `Run the tenant guard against the local and session caches.

The guard compares the cached last-tenant marker with the active tenant
from credsync.yaml. On a mismatch it purges entries tagged with other
tenants, along with legacy entries that carry no tenant tag at all, and
rewrites the marker. Every resolve and save runs this check implicitly;
the command exists for hosting applications that want to run it at a
controlled point, such as right after a tenant switch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			result, err := s.guard.Validate(cfg.ActiveTenant())
			if err != nil {
				return err
			}

			switch result.Status {
			case credential.GuardCleared:
				cfg.Logger.Info("✓ Tenant switch from %q handled: %d cached entr%s cleared",
					result.PreviousTenant, result.Cleared, plural(result.Cleared, "y", "ies"))
			default:
				if result.PreviousTenant == "" {
					cfg.Logger.Info("✓ Caches claimed for tenant %q", cfg.ActiveTenant())
				} else {
					cfg.Logger.Info("✓ Caches already belong to tenant %q", cfg.ActiveTenant())
				}
			}
			return nil
		},
	}

	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
