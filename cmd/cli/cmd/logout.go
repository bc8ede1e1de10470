package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angelospk/subdl/internal/constants"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored SubSource API key",
	Long: `Removes the SubSource API key from the config file. A key supplied through
the environment is not affected.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		path, removed, err := removeAPIKey(cmd.Context())
		if err != nil {
			return configError("logout failed: %v", err)
		}
		if removed {
			fmt.Fprintf(out, "API key removed from %s\n", path)
		} else {
			fmt.Fprintln(out, "No stored API key found.")
		}
		if os.Getenv(constants.APIKeyEnv) != "" {
			fmt.Fprintf(out, "Note: %s is still set in the environment.\n", constants.APIKeyEnv)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(logoutCmd)
}
