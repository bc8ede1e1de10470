package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
	"github.com/angelospk/subdl/pkg/core/prompt"
)

var loginCmd = &cobra.Command{
	Use:   "login [api-key]",
	Short: "Verify and store your SubSource API key",
	Long: `Verifies a SubSource API key with a test API call and stores it in the
config file ($HOME/.subdl/config.yaml, or --config).

Without an argument the key is read from the terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog := newLogger(cmd.ErrOrStderr())
		defer closeLog()
		out := cmd.OutOrStdout()

		var apiKey string
		if len(args) > 0 {
			apiKey = strings.TrimSpace(args[0])
		} else {
			p := prompt.New(cmd.InOrStdin(), out, false)
			key, err := p.ReadLine(cmd.Context(), "SubSource API key: ")
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			apiKey = key
		}
		if apiKey == "" {
			return configError("API key cannot be empty")
		}

		client, err := clientFor(apiKey, logger)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "Verifying SubSource API key...")
		if err := client.Validate(cmd.Context()); err != nil {
			if coreErrors.IsFatal(err) {
				return configError("API key verification failed: the key was rejected")
			}
			return configError("API key verification failed: %v", err)
		}

		path, err := saveAPIKey(cmd.Context(), apiKey)
		if err != nil {
			return configError("failed to save API key: %v", err)
		}
		fmt.Fprintf(out, "API key verified and saved to %s\n", path)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(loginCmd)
}
