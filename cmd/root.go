package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/opsctl/internal/logger"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	verbose    bool

	// rootCmd is the base command for opsctl.
	rootCmd = &cobra.Command{
		Use:   "opsctl",
		Short: "Health checks, config backups and docker cleanup for a homelab host",
		Long: `opsctl bundles the day-two chores of a self-hosted box: a system
health report, a checksummed backup of service configuration, and
pruning of dangling docker resources.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.Init(verbose)
			return err
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Global().Error("command failed", "error", err.Error())
		logger.Cleanup()
		os.Exit(1)
	}
	logger.Cleanup()
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "/etc/opsctl/config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(cleanupCmd)
}
