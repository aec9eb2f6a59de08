// Package commands implements the capsulecoreadmin operator CLI:
// in-process inspection and maintenance commands for a capsule
// storage core, not a transport client.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/novabloom/capsulecore/cmd/capsulecoreadmin/cmdutil"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "capsulecoreadmin",
	Short: "Capsule storage core operator CLI",
	Long: `capsulecoreadmin is an out-of-process inspection tool for a capsule
storage core: list capsules, show blob stats, and force-expire upload
sessions. It talks to the core in-process, against the same storage
backend a running core process uses — not over a network transport.

Use "capsulecoreadmin [command] --help" for more information about a
command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmdutil.Flags.ConfigPath, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (defaults to the standard config directory)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(capsulesCmd)
	rootCmd.AddCommand(blobsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(metricsCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
