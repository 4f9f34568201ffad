package system

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefinitionSource_NewestFileWins(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "main.cvd")
	fresh := filepath.Join(dir, "daily.cld")
	for _, path := range []string{old, fresh} {
		if err := os.WriteFile(path, []byte("defs"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	tenDaysAgo := time.Now().Add(-10 * 24 * time.Hour)
	oneHourAgo := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, tenDaysAgo, tenDaysAgo); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(fresh, oneHourAgo, oneHourAgo); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	age, err := DefinitionSource{Dir: dir}.Age(context.Background())
	if err != nil {
		t.Fatalf("Age returned error: %v", err)
	}
	if age > 2*time.Hour {
		t.Fatalf("expected age near 1h, got %v", age)
	}
}

func TestDefinitionSource_MissingDir(t *testing.T) {
	src := DefinitionSource{Dir: filepath.Join(t.TempDir(), "nope")}
	_, err := src.Age(context.Background())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestDefinitionSource_EmptyDir(t *testing.T) {
	src := DefinitionSource{Dir: t.TempDir()}
	_, err := src.Age(context.Background())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist for empty dir, got %v", err)
	}
}
