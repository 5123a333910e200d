package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sugarbait/phaeton-credsync/internal/config"
	"github.com/sugarbait/phaeton-credsync/internal/credential"
	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
)

func NewResolveCommand(cfg *config.Config) *cobra.Command {
	var (
		ownerID    string
		jsonOutput bool
		showSecret bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve credentials for an owner",
		Long: `Resolve the credential set for an owner in the active tenant.

Resolution consults the durable store first, then the local, session and
process-memory caches. A durable hit repairs the caches on the way out.
"Not configured" is a normal answer for an owner that has never saved
credentials; it is reported as such, not as an error.

The secret key is redacted unless --show-secret is given.

Examples:
  # Show where the credentials came from and which agents are set
  credsync resolve --owner dr-garcia

  # Print the secret key for scripting
  credsync resolve --owner dr-garcia --show-secret

  # Machine-readable output
  credsync resolve --owner dr-garcia --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID == "" {
				return cserrors.UserError{
					Message:    "Owner id is required",
					Suggestion: "Use --owner <owner-id> to pick whose credentials to resolve",
				}
			}

			s, err := guardedStack(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			key := credential.Key{OwnerID: ownerID, TenantID: cfg.ActiveTenant()}
			res, err := s.resolver.Resolve(cmd.Context(), key)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printResolutionJSON(res, showSecret)
			}

			if !res.Configured() {
				cfg.Logger.Info("No credentials configured for %s", key)
				return nil
			}

			set := res.Credentials
			cfg.Logger.Info("✓ Resolved credentials for %s (source: %s)", key, res.Source)
			cfg.Logger.Info("  Primary agent:   %s", orUnset(set.PrimaryAgentID))
			cfg.Logger.Info("  Secondary agent: %s", orUnset(set.SecondaryAgentID))
			cfg.Logger.Info("  Updated:         %s", set.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			if showSecret {
				// Raw value on stdout so it can be captured in scripts.
				fmt.Println(set.SecretKey)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id to resolve credentials for")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output resolution as JSON")
	cmd.Flags().BoolVar(&showSecret, "show-secret", false, "Include the secret key in the output")

	return cmd
}

type resolutionOutput struct {
	Configured       bool   `json:"configured"`
	Source           string `json:"source"`
	OwnerID          string `json:"owner_id,omitempty"`
	TenantID         string `json:"tenant_id,omitempty"`
	SecretKey        string `json:"secret_key,omitempty"`
	PrimaryAgentID   string `json:"primary_agent_id,omitempty"`
	SecondaryAgentID string `json:"secondary_agent_id,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func printResolutionJSON(res credential.Resolution, showSecret bool) error {
	out := resolutionOutput{
		Configured: res.Configured(),
		Source:     string(res.Source),
	}
	if res.Configured() {
		set := res.Credentials
		out.OwnerID = set.OwnerID
		out.TenantID = set.TenantID
		out.PrimaryAgentID = set.PrimaryAgentID
		out.SecondaryAgentID = set.SecondaryAgentID
		out.UpdatedAt = set.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
		if showSecret {
			out.SecretKey = set.SecretKey
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
