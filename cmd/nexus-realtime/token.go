package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nexus-reussite/nexus-realtime/internal/credential"
)

func init() {
	tokenCmd.AddCommand(tokenSetCmd, tokenClearCmd, tokenStatusCmd)
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the bearer token used to open the real-time channel",
	Long:  "The token is stored in the system keyring under the key \"" + credential.TokenKey + "\".",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store the token (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.Wrap(err, "reading token from stdin")
			}
			token = line
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("empty token")
		}

		tokens, err := openTokens()
		if err != nil {
			return err
		}
		if err := tokens.SetToken(token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token stored.")
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tokens, err := openTokens()
		if err != nil {
			return err
		}
		if err := tokens.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token cleared.")
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tokens, err := openTokens()
		if err != nil {
			return err
		}
		token, err := tokens.Token()
		if errors.Is(err, credential.ErrNoToken) {
			fmt.Fprintln(cmd.OutOrStdout(), "Token: (not set)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token: %s\n", maskToken(token))
		return nil
	},
}

func openTokens() (credential.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return credential.OpenKeyring(credential.KeyringOptions{
		Service:  cfg.Credentials.Service,
		FileDir:  cfg.Credentials.FileDir,
		Backends: cfg.Credentials.Backends,
	})
}

// maskToken keeps the first and last four characters.
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
