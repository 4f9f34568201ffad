package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/kebairia/opsctl/internal/health"
)

// DiskSource reports usage for real mounted filesystems under Prefix.
// Boot partitions are excluded.
type DiskSource struct {
	Prefix string
}

var _ health.DiskSource = DiskSource{}

func (s DiskSource) Mounts(ctx context.Context) ([]health.MountUsage, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "/"
	}

	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	mounts := make([]health.MountUsage, 0, len(partitions))
	for _, p := range partitions {
		if !strings.HasPrefix(p.Mountpoint, prefix) {
			continue
		}
		if strings.HasPrefix(p.Mountpoint, "/boot") {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			// A single unreadable mount should not hide the others.
			continue
		}
		mounts = append(mounts, health.MountUsage{
			Mountpoint:  p.Mountpoint,
			UsedPercent: usage.UsedPercent,
		})
	}
	return mounts, nil
}

// MemorySource reports host virtual memory usage.
type MemorySource struct{}

var _ health.MemorySource = MemorySource{}

func (MemorySource) Usage(ctx context.Context) (health.MemoryUsage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return health.MemoryUsage{}, fmt.Errorf("virtual memory: %w", err)
	}
	return health.MemoryUsage{UsedPercent: vm.UsedPercent}, nil
}

// LoadSource reports the 1-minute load average normalized by core count.
type LoadSource struct{}

var _ health.LoadSource = LoadSource{}

func (LoadSource) LoadPercent(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("load average: %w", err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("cpu count: %w", err)
	}
	if cores == 0 {
		cores = 1
	}
	return avg.Load1 / float64(cores) * 100, nil
}
