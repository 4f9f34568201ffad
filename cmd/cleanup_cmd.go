package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/opsctl/internal/config"
	"github.com/kebairia/opsctl/internal/docker"
	"github.com/kebairia/opsctl/internal/logger"
)

var cleanupOpts docker.PruneOptions
var cleanupAll bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune dangling docker resources",
	Long: `cleanup removes stopped containers, dangling images, unused volumes
and unused networks through the docker engine's prune endpoints. Select
the resource kinds with flags, or --all for everything. --dry-run lists
candidates without deleting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Global()

		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}

		opts := cleanupOpts
		if cleanupAll {
			opts.Containers = true
			opts.Images = true
			opts.Volumes = true
			opts.Networks = true
		}
		if !opts.Any() {
			return errors.New("select at least one of --containers, --images, --volumes, --networks, --all")
		}

		cli, err := docker.NewClient(cfg.Docker.Host, cfg.Docker.Timeout)
		if err != nil {
			return err
		}
		defer cli.Close()

		if err := cli.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("docker daemon unreachable: %w", err)
		}

		report, err := cli.Prune(cmd.Context(), opts)
		if err != nil {
			return err
		}

		verb := "removed"
		if opts.DryRun {
			verb = "would remove"
		}
		log.Info("cleanup finished",
			"containers", len(report.Containers),
			"images", len(report.Images),
			"volumes", len(report.Volumes),
			"networks", len(report.Networks),
			"space_reclaimed_bytes", report.SpaceReclaimed,
			"mode", verb,
		)
		for _, kind := range []struct {
			name  string
			items []string
		}{
			{"container", report.Containers},
			{"image", report.Images},
			{"volume", report.Volumes},
			{"network", report.Networks},
		} {
			for _, item := range kind.items {
				fmt.Printf("%s %s: %s\n", verb, kind.name, item)
			}
		}
		for _, note := range report.Notes {
			log.Warn(note)
		}
		return nil
	},
}

func init() {
	flags := cleanupCmd.Flags()
	flags.BoolVar(&cleanupOpts.Containers, "containers", false, "remove stopped containers")
	flags.BoolVar(&cleanupOpts.Images, "images", false, "remove dangling images")
	flags.BoolVar(&cleanupOpts.Volumes, "volumes", false, "remove unused volumes")
	flags.BoolVar(&cleanupOpts.Networks, "networks", false, "remove unused networks")
	flags.BoolVar(&cleanupAll, "all", false, "remove all of the above")
	flags.BoolVar(&cleanupOpts.DryRun, "dry-run", false, "list candidates without deleting")
}
