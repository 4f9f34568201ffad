package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kebairia/opsctl/internal/logger"
)

const (
	archivePrefix   = "config-backup-"
	archiveSuffix   = ".tar.gz"
	checksumSuffix  = ".sha256"
	timestampFormat = "20060102_150405"
)

// ErrDestination indicates the destination directory could not be
// created or written. Fatal.
var ErrDestination = errors.New("backup destination unusable")

// ErrArchive indicates the archive or checksum step failed. Fatal; no
// partial archive is left behind without its checksum.
var ErrArchive = errors.New("archive creation failed")

// Rotator stages configured sources, produces one checksummed archive
// per run, and prunes archives older than the retention window.
type Rotator struct {
	manifest      []Entry
	dir           string
	retentionDays int
	log           logger.Logger

	now func() time.Time

	// stagingParent overrides the staging tree location; empty means
	// the system temp directory.
	stagingParent string
}

// New builds a Rotator writing archives to dir.
func New(manifest []Entry, dir string, retentionDays int, log logger.Logger) *Rotator {
	if log == nil {
		log = logger.Global()
	}
	return &Rotator{
		manifest:      manifest,
		dir:           dir,
		retentionDays: retentionDays,
		log:           log,
		now:           time.Now,
	}
}

// Run performs one backup: stage, archive, checksum, metadata, prune.
// Missing sources are recorded as skips; only destination or archive
// failures return an error. Runs against the same destination are
// serialized by an advisory lock file.
func (r *Rotator) Run(ctx context.Context) (*Archive, error) {
	start := r.now()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrDestination, r.dir, err)
	}

	unlock, err := acquireLock(r.dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	staging, err := os.MkdirTemp(r.stagingParent, "opsctl-stage-")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging tree: %v", ErrDestination, err)
	}
	// Staging data must never leak into subsequent runs.
	defer os.RemoveAll(staging)

	skipped := r.stage(ctx, staging)

	name := archivePrefix + start.Format(timestampFormat)
	archivePath := filepath.Join(r.dir, name+archiveSuffix)

	size, err := writeArchive(staging, archivePath)
	if err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("%w: %v", ErrArchive, err)
	}

	// The checksum is computed only after the archive is finalized on
	// disk; a pair is written together or not at all.
	checksum, err := checksumFile(archivePath)
	if err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("%w: checksum: %v", ErrArchive, err)
	}
	if err := writeChecksum(archivePath, checksum); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("%w: write checksum: %v", ErrArchive, err)
	}

	archive := &Archive{
		Name:      name,
		Path:      archivePath,
		SizeBytes: size,
		Checksum:  checksum,
		CreatedAt: start,
		Skipped:   skipped,
	}

	archive.Pruned = r.pruneExpired(start, name)

	meta := newMetadata(archive, r.manifest, r.now().Sub(start))
	if err := meta.Write(r.dir); err != nil {
		// Metadata is best effort; the archive itself is intact.
		r.log.Warn("write backup metadata", "error", err.Error())
	}

	r.log.Info("backup complete",
		"archive", archive.Path,
		"size_bytes", archive.SizeBytes,
		"skipped", len(archive.Skipped),
		"pruned", len(archive.Pruned),
	)
	return archive, nil
}

// stage copies every present manifest entry into the staging tree and
// returns the skips for absent or unreadable sources.
func (r *Rotator) stage(ctx context.Context, staging string) []Skip {
	var skipped []Skip
	for _, entry := range r.manifest {
		if err := ctx.Err(); err != nil {
			skipped = append(skipped, Skip{Source: entry.Source, Reason: err.Error()})
			continue
		}
		dest := filepath.Join(staging, filepath.FromSlash(entry.ArchivePath))
		if err := copyTree(entry.Source, dest); err != nil {
			reason := "copy failed: " + err.Error()
			if errors.Is(err, os.ErrNotExist) {
				reason = "source not found"
			} else if errors.Is(err, os.ErrPermission) {
				reason = "permission denied"
			}
			r.log.Warn("skipping backup entry", "source", entry.Source, "reason", reason)
			skipped = append(skipped, Skip{Source: entry.Source, Reason: reason})
		}
	}
	return skipped
}

// pruneExpired deletes archives older than the retention window, along
// with their checksum files. current is excluded regardless of age.
func (r *Rotator) pruneExpired(now time.Time, current string) []string {
	cutoff := now.Add(-time.Duration(r.retentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.Warn("retention scan failed", "dir", r.dir, "error", err.Error())
		return nil
	}

	var pruned []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		if strings.TrimSuffix(name, archiveSuffix) == current {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		// Age is measured from modification time, not creation metadata.
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.dir, name)
		if err := os.Remove(path); err != nil {
			r.log.Warn("retention delete failed", "archive", name, "error", err.Error())
			continue
		}
		// Remove the checksum counterpart too; its absence is fine.
		_ = os.Remove(path + checksumSuffix)
		pruned = append(pruned, name)
		r.log.Info("pruned expired archive", "archive", name)
	}
	return pruned
}
