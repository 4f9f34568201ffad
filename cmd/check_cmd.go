package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/opsctl/internal/config"
	"github.com/kebairia/opsctl/internal/docker"
	"github.com/kebairia/opsctl/internal/health"
	"github.com/kebairia/opsctl/internal/logger"
	"github.com/kebairia/opsctl/internal/system"
)

var checkFull bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the host health checks and print a report",
	Long: `check evaluates services, disk, memory and cpu load. With --full it
also inspects running containers, antivirus definition age and pending
package updates. The exit code is non-zero when any check is not OK.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}

		mode := health.ModeBrief
		if checkFull {
			mode = health.ModeFull
		}

		report := buildRunner(&cfg).Run(cmd.Context(), mode)
		renderReport(report)

		if report.IssueCount() > 0 {
			logger.Cleanup()
			os.Exit(1)
		}
		return nil
	},
}

// buildRunner wires the configured checks to their host sources, in
// report order.
func buildRunner(cfg *config.Config) *health.Runner {
	var containerSrc health.ContainerSource
	if cli, err := docker.NewClient(cfg.Docker.Host, cfg.Docker.Timeout); err != nil {
		containerSrc = unavailableContainers{err: err}
	} else {
		containerSrc = cli
	}

	checks := []health.Check{
		health.ServicesCheck(system.SystemdSource{}, cfg.Health.Services),
		health.DiskCheck(system.DiskSource{Prefix: cfg.Health.MountPrefix}, cfg.Health.DiskThresholdPercent),
		health.MemoryCheck(system.MemorySource{}, cfg.Health.MemoryThresholdPercent),
		health.LoadCheck(system.LoadSource{}, cfg.Health.LoadThresholdPercent),
		health.ContainersCheck(containerSrc),
		health.DefinitionsCheck(
			system.DefinitionSource{Dir: cfg.Health.AntivirusDir},
			time.Duration(cfg.Health.AntivirusMaxAgeDays)*24*time.Hour,
		),
		health.UpdatesCheck(system.UpdateSource{}),
	}
	return health.NewRunner(checks, cfg.Health.CheckTimeout, logger.Global())
}

func renderReport(report health.Report) {
	for _, res := range report.Results {
		fmt.Printf("  [%s]\t%s\t%s\n", res.Status, res.Name, res.Message)
	}
	fmt.Printf("Overall: %s (%d issues)\n", report.Overall(), report.IssueCount())
}

// unavailableContainers surfaces a docker client init failure as a
// query error, so the containers check degrades to WARN.
type unavailableContainers struct{ err error }

func (u unavailableContainers) Running(ctx context.Context) ([]health.Container, error) {
	return nil, u.err
}

func init() {
	checkCmd.Flags().BoolVar(&checkFull, "full", false, "run the full check set")
}
