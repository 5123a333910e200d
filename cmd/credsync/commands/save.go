package commands

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sugarbait/phaeton-credsync/internal/config"
	"github.com/sugarbait/phaeton-credsync/internal/credential"
	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
)

func NewSaveCommand(cfg *config.Config) *cobra.Command {
	var (
		ownerID        string
		secretKey      string
		secretKeyStdin bool
		primaryAgent   string
		secondaryAgent string
		loginPassword  string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save credentials for an owner",
		Long: `Save a credential set for an owner in the active tenant.

The record replaces whatever was stored before; agent ids left empty are
stored as empty, not merged from the previous record. The secret is
encrypted before it touches the durable store and written to every cache
tier. If the durable store is unreachable the save degrades to the caches
and a sync warning is reported.

When --login-password is supplied (typically by the hosting application),
a secret key equal to it is rejected outright.

Examples:
  # Save a secret key with both agent ids
  credsync save --owner dr-garcia --secret-key sk-abc123 \
    --primary-agent agent-7 --secondary-agent agent-9

  # Pipe the secret in rather than exposing it in the process list
  printf '%s' "$SECRET" | credsync save --owner dr-garcia --secret-key-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID == "" {
				return cserrors.UserError{
					Message:    "Owner id is required",
					Suggestion: "Use --owner <owner-id> to pick whose credentials to save",
				}
			}
			if secretKeyStdin {
				if secretKey != "" {
					return cserrors.UserError{
						Message:    "Both --secret-key and --secret-key-stdin were given",
						Suggestion: "Pick one way to supply the secret key",
					}
				}
				read, err := readSecretFromStdin()
				if err != nil {
					return err
				}
				secretKey = read
			}

			s, err := guardedStack(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			key := credential.Key{OwnerID: ownerID, TenantID: cfg.ActiveTenant()}
			result, err := s.writer.Save(cmd.Context(), key, credential.SaveInput{
				SecretKey:        secretKey,
				PrimaryAgentID:   primaryAgent,
				SecondaryAgentID: secondaryAgent,
				LoginPassword:    loginPassword,
			})
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				cfg.Logger.Warn("%s", w)
			}
			if result.DurablyPersisted {
				cfg.Logger.Info("✓ Saved credentials for %s", key)
			} else {
				cfg.Logger.Info("✓ Saved credentials for %s on this device", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id to save credentials for")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "Secret key to store")
	cmd.Flags().BoolVar(&secretKeyStdin, "secret-key-stdin", false, "Read the secret key from stdin")
	cmd.Flags().StringVar(&primaryAgent, "primary-agent", "", "Primary agent id (optional)")
	cmd.Flags().StringVar(&secondaryAgent, "secondary-agent", "", "Secondary agent id (optional)")
	cmd.Flags().StringVar(&loginPassword, "login-password", "", "Login password to reject as a secret key")

	return cmd
}

func readSecretFromStdin() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", cserrors.UserError{
			Message:    "Failed to read the secret key from stdin",
			Suggestion: "Pipe the secret in, e.g. printf '%s' \"$SECRET\" | credsync save --secret-key-stdin ...",
			Err:        err,
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}
