package docker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
)

// ErrNoSelector means Prune was called without any resource selected.
var ErrNoSelector = errors.New("no resource selected for pruning")

// PruneOptions selects which dangling resources to remove.
type PruneOptions struct {
	Containers bool
	Images     bool
	Volumes    bool
	Networks   bool
	DryRun     bool
}

// Any reports whether at least one resource kind is selected.
func (o PruneOptions) Any() bool {
	return o.Containers || o.Images || o.Volumes || o.Networks
}

// PruneReport lists what was (or, in dry-run, would be) removed.
type PruneReport struct {
	Containers     []string
	Images         []string
	Volumes        []string
	Networks       []string
	SpaceReclaimed uint64

	// Notes carries per-kind caveats, e.g. kinds the engine cannot
	// enumerate without deleting during a dry run.
	Notes []string
}

// Prune removes the selected dangling resources through the engine's
// prune endpoints. With DryRun set it only enumerates candidates.
func (c *Client) Prune(ctx context.Context, opts PruneOptions) (PruneReport, error) {
	var report PruneReport
	if !opts.Any() {
		return report, ErrNoSelector
	}

	// Prune endpoints can take a while on large hosts; give each call
	// its own generous deadline instead of the API default.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if opts.Containers {
		if err := c.pruneContainers(ctx, opts.DryRun, &report); err != nil {
			return report, err
		}
	}
	if opts.Images {
		if err := c.pruneImages(ctx, opts.DryRun, &report); err != nil {
			return report, err
		}
	}
	if opts.Volumes {
		if err := c.pruneVolumes(ctx, opts.DryRun, &report); err != nil {
			return report, err
		}
	}
	if opts.Networks {
		if err := c.pruneNetworks(ctx, opts.DryRun, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (c *Client) pruneContainers(ctx context.Context, dryRun bool, report *PruneReport) error {
	if dryRun {
		stopped, err := c.api.ContainerList(ctx, container.ListOptions{
			All:     true,
			Filters: filters.NewArgs(filters.Arg("status", "exited")),
		})
		if err != nil {
			return fmt.Errorf("list stopped containers: %w", err)
		}
		for _, item := range stopped {
			report.Containers = append(report.Containers, containerName(item.Names, item.ID))
		}
		return nil
	}

	pruned, err := c.api.ContainersPrune(ctx, filters.NewArgs())
	if err != nil {
		return fmt.Errorf("prune containers: %w", err)
	}
	report.Containers = append(report.Containers, pruned.ContainersDeleted...)
	report.SpaceReclaimed += pruned.SpaceReclaimed
	return nil
}

func (c *Client) pruneImages(ctx context.Context, dryRun bool, report *PruneReport) error {
	dangling := filters.NewArgs(filters.Arg("dangling", "true"))

	if dryRun {
		images, err := c.api.ImageList(ctx, image.ListOptions{Filters: dangling})
		if err != nil {
			return fmt.Errorf("list dangling images: %w", err)
		}
		for _, img := range images {
			report.Images = append(report.Images, img.ID)
		}
		return nil
	}

	pruned, err := c.api.ImagesPrune(ctx, dangling)
	if err != nil {
		return fmt.Errorf("prune images: %w", err)
	}
	for _, deleted := range pruned.ImagesDeleted {
		if deleted.Deleted != "" {
			report.Images = append(report.Images, deleted.Deleted)
		}
	}
	report.SpaceReclaimed += pruned.SpaceReclaimed
	return nil
}

func (c *Client) pruneVolumes(ctx context.Context, dryRun bool, report *PruneReport) error {
	if dryRun {
		volumes, err := c.api.VolumeList(ctx, volume.ListOptions{
			Filters: filters.NewArgs(filters.Arg("dangling", "true")),
		})
		if err != nil {
			return fmt.Errorf("list dangling volumes: %w", err)
		}
		for _, vol := range volumes.Volumes {
			report.Volumes = append(report.Volumes, vol.Name)
		}
		return nil
	}

	pruned, err := c.api.VolumesPrune(ctx, filters.NewArgs())
	if err != nil {
		return fmt.Errorf("prune volumes: %w", err)
	}
	report.Volumes = append(report.Volumes, pruned.VolumesDeleted...)
	report.SpaceReclaimed += pruned.SpaceReclaimed
	return nil
}

func (c *Client) pruneNetworks(ctx context.Context, dryRun bool, report *PruneReport) error {
	if dryRun {
		// The engine only identifies unused networks during the prune
		// call itself; there is no cheap candidate listing.
		report.Notes = append(report.Notes, "networks: dry-run not supported, skipped")
		return nil
	}

	pruned, err := c.api.NetworksPrune(ctx, filters.NewArgs())
	if err != nil {
		return fmt.Errorf("prune networks: %w", err)
	}
	report.Networks = append(report.Networks, pruned.NetworksDeleted...)
	return nil
}
