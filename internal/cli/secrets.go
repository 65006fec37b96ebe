package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dashstat/internal/config"
	"dashstat/internal/secrets"
)

func newSecretsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Store secrets in the OS keyring",
	}
	cmd.AddCommand(newSecretsSetCmd(opts))
	return cmd
}

func newSecretsSetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <token|weather-api-key> [value]",
		Short: "Store a secret; reads stdin or prompts when value is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.KeyFor(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				value, err = readSecret(cmd, args[0])
				if err != nil {
					return err
				}
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("empty value for %s", args[0])
			}

			if err := secrets.NewStore(cfg.KeyringBackend).Set(key, []byte(value)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in keyring\n", key)
			return nil
		},
	}

	return cmd
}

// readSecret prompts without echo on a terminal, otherwise reads one line
// from stdin.
func readSecret(cmd *cobra.Command, name string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", name)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return line, nil
}
