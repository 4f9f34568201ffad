package system

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kebairia/opsctl/internal/health"
)

// DefinitionSource reports the age of the newest antivirus definition
// file in Dir (the ClamAV database directory on a stock install).
type DefinitionSource struct {
	Dir string
}

var _ health.DefinitionSource = DefinitionSource{}

func (s DefinitionSource) Age(ctx context.Context) (time.Duration, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, err // fs.ErrNotExist propagates for the missing-dir policy
	}

	var newest time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	if newest.IsZero() {
		return 0, fmt.Errorf("%w: no definition files in %s", fs.ErrNotExist, filepath.Clean(s.Dir))
	}
	return time.Since(newest), nil
}
