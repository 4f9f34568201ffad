package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/kebairia/opsctl/internal/health"
)

// SystemdSource answers service state queries through systemctl.
type SystemdSource struct{}

var _ health.ServiceSource = SystemdSource{}

// IsActive reports whether the given unit is currently active.
// A non-zero exit from systemctl means inactive; a missing systemctl
// binary is a query failure.
func (SystemdSource) IsActive(ctx context.Context, unit string) (bool, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", unit)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("systemctl is-active %s: %w", unit, err)
}
