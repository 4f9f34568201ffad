package backup

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// listArchive returns the sorted entry names inside a tar.gz file.
func listArchive(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		names = append(names, header.Name)
	}
	sort.Strings(names)
	return names
}

func globOne(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected exactly one match for %s, got %v (err %v)", pattern, matches, err)
	}
	return matches[0]
}

func TestRun_SampleScenario(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	smb := writeSource(t, src, "smb.conf", "[global]\nworkgroup = HOME\n")

	manifest := []Entry{
		{Source: smb, ArchivePath: "samba/smb.conf"},
		{Source: filepath.Join(src, "nonexistent"), ArchivePath: "x/y"},
	}

	archive, err := New(manifest, dest, 7, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	archivePath := globOne(t, filepath.Join(dest, "config-backup-*.tar.gz"))
	if archive.Path != archivePath {
		t.Fatalf("Archive.Path = %s, want %s", archive.Path, archivePath)
	}

	names := listArchive(t, archivePath)
	want := []string{"samba/", "samba/smb.conf"}
	if len(names) != len(want) {
		t.Fatalf("archive entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("archive entries = %v, want %v", names, want)
		}
	}

	if len(archive.Skipped) != 1 || archive.Skipped[0].Reason != "source not found" {
		t.Fatalf("expected one not-found skip, got %+v", archive.Skipped)
	}
	if len(archive.Pruned) != 0 {
		t.Fatalf("expected no pruned archives, got %v", archive.Pruned)
	}
}

func TestRun_ChecksumRoundTrip(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	conf := writeSource(t, src, "jail.local", "[sshd]\nenabled = true\n")

	archive, err := New([]Entry{{Source: conf, ArchivePath: "fail2ban/jail.local"}}, dest, 7, nil).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	checksumPath := archive.Path + ".sha256"
	data, err := os.ReadFile(checksumPath)
	if err != nil {
		t.Fatalf("read checksum file: %v", err)
	}

	recomputed, err := checksumFile(archive.Path)
	if err != nil {
		t.Fatalf("recompute checksum: %v", err)
	}
	if recomputed != archive.Checksum {
		t.Fatalf("recomputed checksum %s != reported %s", recomputed, archive.Checksum)
	}

	fields := strings.Fields(string(data))
	if len(fields) != 2 || fields[0] != recomputed || fields[1] != filepath.Base(archive.Path) {
		t.Fatalf("unexpected checksum file contents: %q", string(data))
	}
}

func TestRun_StagingTreeRemoved(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	stagingParent := t.TempDir()
	conf := writeSource(t, src, "smb.conf", "x")

	rotator := New([]Entry{{Source: conf, ArchivePath: "samba/smb.conf"}}, dest, 7, nil)
	rotator.stagingParent = stagingParent

	if _, err := rotator.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	leftovers, err := os.ReadDir(stagingParent)
	if err != nil {
		t.Fatalf("read staging parent: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("staging tree leaked: %v", leftovers)
	}
}

func TestRun_CopiesDirectoriesRecursively(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeSource(t, src, "fail2ban/jail.local", "[sshd]\n")
	writeSource(t, src, "fail2ban/filter.d/custom.conf", "[Definition]\n")

	archive, err := New(
		[]Entry{{Source: filepath.Join(src, "fail2ban"), ArchivePath: "fail2ban"}},
		dest, 7, nil,
	).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	names := listArchive(t, archive.Path)
	want := []string{
		"fail2ban/",
		"fail2ban/filter.d/",
		"fail2ban/filter.d/custom.conf",
		"fail2ban/jail.local",
	}
	if len(names) != len(want) {
		t.Fatalf("archive entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("archive entries = %v, want %v", names, want)
		}
	}
}

func agedArchive(t *testing.T, dir, name string, age time.Duration, withChecksum bool) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("old archive"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	if withChecksum {
		if err := os.WriteFile(path+".sha256", []byte("deadbeef  "+name+"\n"), 0o644); err != nil {
			t.Fatalf("write checksum for %s: %v", path, err)
		}
	}
}

func TestRun_RetentionWindow(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	conf := writeSource(t, src, "smb.conf", "x")

	day := 24 * time.Hour
	agedArchive(t, dest, "config-backup-20240101_000000.tar.gz", 10*day, true)
	agedArchive(t, dest, "config-backup-20240103_000000.tar.gz", 8*day, false) // no checksum, deleted by age alone
	agedArchive(t, dest, "config-backup-20240105_000000.tar.gz", 6*day, true)
	agedArchive(t, dest, "config-backup-20240110_000000.tar.gz", 1*day, true)

	archive, err := New([]Entry{{Source: conf, ArchivePath: "samba/smb.conf"}}, dest, 7, nil).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	wantPruned := []string{
		"config-backup-20240101_000000.tar.gz",
		"config-backup-20240103_000000.tar.gz",
	}
	sort.Strings(archive.Pruned)
	if len(archive.Pruned) != 2 || archive.Pruned[0] != wantPruned[0] || archive.Pruned[1] != wantPruned[1] {
		t.Fatalf("Pruned = %v, want %v", archive.Pruned, wantPruned)
	}

	for _, name := range wantPruned {
		if _, err := os.Stat(filepath.Join(dest, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s deleted, stat err = %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "config-backup-20240101_000000.tar.gz.sha256")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected checksum counterpart deleted, stat err = %v", err)
	}

	for _, name := range []string{
		"config-backup-20240105_000000.tar.gz",
		"config-backup-20240110_000000.tar.gz",
		"config-backup-20240105_000000.tar.gz.sha256",
	} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Fatalf("expected %s to survive: %v", name, err)
		}
	}
}

func TestRun_AllSourcesMissingStillProducesArchive(t *testing.T) {
	dest := t.TempDir()
	manifest := []Entry{
		{Source: filepath.Join(t.TempDir(), "a"), ArchivePath: "a"},
		{Source: filepath.Join(t.TempDir(), "b"), ArchivePath: "b"},
	}

	archive, err := New(manifest, dest, 7, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(archive.Skipped) != 2 {
		t.Fatalf("expected 2 skips, got %+v", archive.Skipped)
	}
	if _, err := os.Stat(archive.Path); err != nil {
		t.Fatalf("expected empty archive to exist: %v", err)
	}
}

func TestRun_UnwritableDestinationIsFatal(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	// Destination path is an existing regular file.
	_, err := New(nil, blocker, 7, nil).Run(context.Background())
	if !errors.Is(err, ErrDestination) {
		t.Fatalf("expected ErrDestination, got %v", err)
	}
}

func TestRun_WritesMetadata(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	conf := writeSource(t, src, "smb.conf", "x")

	manifest := []Entry{
		{Source: conf, ArchivePath: "samba/smb.conf"},
		{Source: filepath.Join(src, "missing"), ArchivePath: "missing"},
	}
	archive, err := New(manifest, dest, 7, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var meta Metadata
	if err := meta.Load(filepath.Join(dest, MetadataFilename)); err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if meta.Checksum != archive.Checksum {
		t.Fatalf("metadata checksum %s != %s", meta.Checksum, archive.Checksum)
	}
	if len(meta.Entries) != 2 {
		t.Fatalf("expected 2 entry records, got %+v", meta.Entries)
	}
	if meta.Entries[0].Status != "copied" || meta.Entries[1].Status != "skipped" {
		t.Fatalf("unexpected entry statuses: %+v", meta.Entries)
	}
}
