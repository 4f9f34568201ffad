package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/opsctl/internal/backup"
	"github.com/kebairia/opsctl/internal/config"
	"github.com/kebairia/opsctl/internal/logger"
)

var backupCmd = &cobra.Command{
	Use:   "backup [destination]",
	Short: "Archive configured paths into a checksummed backup",
	Long: `backup stages every configured source that exists, writes one
timestamped tar.gz plus its SHA-256 checksum to the destination
directory, and deletes archives older than the retention window.
Reading protected paths like /etc/samba requires running as root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Global()

		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}

		dest := cfg.Backup.OutputDirectory
		if len(args) == 1 {
			dest = args[0]
		}

		if os.Geteuid() != 0 {
			log.Warn("not running as root; protected sources will be skipped")
		}

		manifest := make([]backup.Entry, 0, len(cfg.Backup.Manifest))
		for _, entry := range cfg.Backup.Manifest {
			manifest = append(manifest, backup.Entry{
				Source:      entry.Source,
				ArchivePath: entry.ArchivePath,
			})
		}

		rotator := backup.New(manifest, dest, cfg.Backup.RetentionDays, log)
		archive, err := rotator.Run(cmd.Context())
		if err != nil {
			return err
		}

		for _, skip := range archive.Skipped {
			log.Warn("entry skipped", "source", skip.Source, "reason", skip.Reason)
		}
		log.Info("archive written",
			"path", archive.Path,
			"checksum", archive.Checksum,
			"size_bytes", archive.SizeBytes,
		)
		return nil
	},
}
