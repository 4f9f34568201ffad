package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// ErrUnavailable is returned by a source when the underlying tool is not
// installed on this host. Checks decide per policy whether that is a
// warning or merely informational.
var ErrUnavailable = errors.New("tool unavailable")

// MountUsage is the usage of one mounted filesystem.
type MountUsage struct {
	Mountpoint  string
	UsedPercent float64
}

// MemoryUsage is the host memory usage.
type MemoryUsage struct {
	UsedPercent float64
}

// Container is the runtime view of one container.
type Container struct {
	Name   string
	State  string // e.g. "running", "exited"
	Health string // "healthy", "unhealthy", "starting", or empty when no probe
}

// Source interfaces are deliberately narrow so the threshold logic can
// be tested against fakes without touching the real host.
type (
	ServiceSource interface {
		IsActive(ctx context.Context, unit string) (bool, error)
	}
	DiskSource interface {
		Mounts(ctx context.Context) ([]MountUsage, error)
	}
	MemorySource interface {
		Usage(ctx context.Context) (MemoryUsage, error)
	}
	LoadSource interface {
		// LoadPercent is the 1-minute load average normalized by core
		// count, as a percentage.
		LoadPercent(ctx context.Context) (float64, error)
	}
	ContainerSource interface {
		Running(ctx context.Context) ([]Container, error)
	}
	DefinitionSource interface {
		// Age is the age of the newest antivirus definition file.
		Age(ctx context.Context) (time.Duration, error)
	}
	UpdateSource interface {
		// Pending is the number of package updates available.
		Pending(ctx context.Context) (int, error)
	}
)

// ServicesCheck reports one result per configured unit: FAIL when the
// unit is not active.
func ServicesCheck(src ServiceSource, units []string) Check {
	return Check{
		Name: "services",
		Fn: func(ctx context.Context) ([]Result, error) {
			results := make([]Result, 0, len(units))
			for _, unit := range units {
				active, err := src.IsActive(ctx, unit)
				switch {
				case err != nil:
					results = append(results, Result{
						Name:    "service:" + unit,
						Status:  StatusWarn,
						Message: fmt.Sprintf("query failed: %v", err),
					})
				case active:
					results = append(results, Result{
						Name:    "service:" + unit,
						Status:  StatusOK,
						Message: "active",
					})
				default:
					results = append(results, Result{
						Name:    "service:" + unit,
						Status:  StatusFail,
						Message: "inactive",
					})
				}
			}
			return results, nil
		},
	}
}

// DiskCheck reports one result per mountpoint: WARN at or above the
// threshold percent used.
func DiskCheck(src DiskSource, thresholdPercent float64) Check {
	return Check{
		Name: "disk",
		Fn: func(ctx context.Context) ([]Result, error) {
			mounts, err := src.Mounts(ctx)
			if err != nil {
				return nil, fmt.Errorf("list mounts: %w", err)
			}
			results := make([]Result, 0, len(mounts))
			for _, m := range mounts {
				status := StatusOK
				if m.UsedPercent >= thresholdPercent {
					status = StatusWarn
				}
				results = append(results, Result{
					Name:    "disk:" + m.Mountpoint,
					Status:  status,
					Message: fmt.Sprintf("%.0f%% full", m.UsedPercent),
				})
			}
			return results, nil
		},
	}
}

// MemoryCheck reports a single result: WARN at or above the threshold.
func MemoryCheck(src MemorySource, thresholdPercent float64) Check {
	return Check{
		Name: "memory",
		Fn: func(ctx context.Context) ([]Result, error) {
			usage, err := src.Usage(ctx)
			if err != nil {
				return nil, fmt.Errorf("memory usage: %w", err)
			}
			status := StatusOK
			if usage.UsedPercent >= thresholdPercent {
				status = StatusWarn
			}
			return []Result{{
				Name:    "memory",
				Status:  status,
				Message: fmt.Sprintf("%.0f%% used", usage.UsedPercent),
			}}, nil
		},
	}
}

// LoadCheck reports a single result for the normalized 1-minute load.
func LoadCheck(src LoadSource, thresholdPercent float64) Check {
	return Check{
		Name: "cpu",
		Fn: func(ctx context.Context) ([]Result, error) {
			pct, err := src.LoadPercent(ctx)
			if err != nil {
				return nil, fmt.Errorf("load average: %w", err)
			}
			status := StatusOK
			if pct >= thresholdPercent {
				status = StatusWarn
			}
			return []Result{{
				Name:    "cpu",
				Status:  status,
				Message: fmt.Sprintf("load at %.0f%% of capacity", pct),
			}}, nil
		},
	}
}

// ContainersCheck reports one result per running container. A container
// is OK when its state is "running" and its health probe, if present,
// reports "healthy". No running containers is itself OK.
func ContainersCheck(src ContainerSource) Check {
	return Check{
		Name:     "containers",
		FullOnly: true,
		Fn: func(ctx context.Context) ([]Result, error) {
			containers, err := src.Running(ctx)
			if err != nil {
				return nil, fmt.Errorf("list containers: %w", err)
			}
			if len(containers) == 0 {
				return []Result{{
					Name:    "containers",
					Status:  StatusOK,
					Message: "no running containers",
				}}, nil
			}
			results := make([]Result, 0, len(containers))
			for _, c := range containers {
				healthy := c.State == "running" && (c.Health == "" || c.Health == "healthy")
				status := StatusOK
				message := c.State
				if c.Health != "" {
					message = fmt.Sprintf("%s (%s)", c.State, c.Health)
				}
				if !healthy {
					status = StatusFail
				}
				results = append(results, Result{
					Name:    "container:" + c.Name,
					Status:  status,
					Message: message,
				})
			}
			return results, nil
		},
	}
}

// DefinitionsCheck warns when antivirus definitions are older than
// maxAge. A missing definition directory is a WARN too, with a message
// saying so.
func DefinitionsCheck(src DefinitionSource, maxAge time.Duration) Check {
	return Check{
		Name:     "antivirus",
		FullOnly: true,
		Fn: func(ctx context.Context) ([]Result, error) {
			age, err := src.Age(ctx)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrUnavailable) {
					return []Result{{
						Name:    "antivirus",
						Status:  StatusWarn,
						Message: "definitions not found",
					}}, nil
				}
				return nil, fmt.Errorf("definition age: %w", err)
			}
			if age > maxAge {
				return []Result{{
					Name:    "antivirus",
					Status:  StatusWarn,
					Message: fmt.Sprintf("definitions are %d days old", int(age.Hours()/24)),
				}}, nil
			}
			return []Result{{
				Name:    "antivirus",
				Status:  StatusOK,
				Message: "definitions up to date",
			}}, nil
		},
	}
}

// UpdatesCheck warns when package updates are pending. An absent update
// tool is OK with an explanatory message: missing tooling is not itself
// a problem with the host.
func UpdatesCheck(src UpdateSource) Check {
	return Check{
		Name:     "updates",
		FullOnly: true,
		Fn: func(ctx context.Context) ([]Result, error) {
			pending, err := src.Pending(ctx)
			if err != nil {
				if errors.Is(err, ErrUnavailable) {
					return []Result{{
						Name:    "updates",
						Status:  StatusOK,
						Message: "update tool not installed",
					}}, nil
				}
				return nil, fmt.Errorf("pending updates: %w", err)
			}
			if pending > 0 {
				return []Result{{
					Name:    "updates",
					Status:  StatusWarn,
					Message: fmt.Sprintf("%d updates available", pending),
				}}, nil
			}
			return []Result{{
				Name:    "updates",
				Status:  StatusOK,
				Message: "system up to date",
			}}, nil
		},
	}
}
