package system

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kebairia/opsctl/internal/health"
)

// UpdateSource counts pending package updates through the host package
// manager. apt is tried first, then dnf; if neither is installed the
// source reports health.ErrUnavailable.
type UpdateSource struct{}

var _ health.UpdateSource = UpdateSource{}

func (UpdateSource) Pending(ctx context.Context) (int, error) {
	if _, err := exec.LookPath("apt-get"); err == nil {
		return pendingApt(ctx)
	}
	if _, err := exec.LookPath("dnf"); err == nil {
		return pendingDnf(ctx)
	}
	return 0, health.ErrUnavailable
}

// pendingApt counts "Inst" lines from a simulated upgrade.
func pendingApt(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, "apt-get", "-s", "upgrade")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("apt-get -s upgrade: %w", err)
	}
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "Inst ") {
			count++
		}
	}
	return count, nil
}

// pendingDnf counts package lines from dnf check-update, which exits 100
// when updates are available.
func pendingDnf(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, "dnf", "-q", "check-update")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 100 {
			return countDnfLines(out), nil
		}
		return 0, fmt.Errorf("dnf check-update: %w", err)
	}
	return 0, nil
}

func countDnfLines(out []byte) int {
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "Obsoleting") {
			continue
		}
		count++
	}
	return count
}
