package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const MetadataFilename = "metadata.json"

// EntryRecord is the per-entry outcome recorded in the metadata file.
type EntryRecord struct {
	Source      string `json:"source"`
	ArchivePath string `json:"archive_path"`
	Status      string `json:"status"` // "copied" or "skipped"
	Reason      string `json:"reason,omitempty"`
}

// Metadata describes the most recent backup run. It is written next to
// the archives so a host can be audited without unpacking anything.
type Metadata struct {
	RunAt     time.Time     `json:"run_at"`
	Archive   string        `json:"archive"`
	SizeBytes int64         `json:"size_bytes"`
	Checksum  string        `json:"checksum"`
	Duration  time.Duration `json:"duration_ms"`
	Entries   []EntryRecord `json:"entries"`
	Pruned    []string      `json:"pruned,omitempty"`
}

// newMetadata builds the run record from the finished archive and the
// manifest it was staged from.
func newMetadata(archive *Archive, manifest []Entry, duration time.Duration) Metadata {
	skippedBySource := make(map[string]string, len(archive.Skipped))
	for _, skip := range archive.Skipped {
		skippedBySource[skip.Source] = skip.Reason
	}

	entries := make([]EntryRecord, 0, len(manifest))
	for _, entry := range manifest {
		record := EntryRecord{
			Source:      entry.Source,
			ArchivePath: entry.ArchivePath,
			Status:      "copied",
		}
		if reason, ok := skippedBySource[entry.Source]; ok {
			record.Status = "skipped"
			record.Reason = reason
		}
		entries = append(entries, record)
	}

	return Metadata{
		RunAt:     archive.CreatedAt,
		Archive:   filepath.Base(archive.Path),
		SizeBytes: archive.SizeBytes,
		Checksum:  archive.Checksum,
		Duration:  duration,
		Entries:   entries,
		Pruned:    archive.Pruned,
	}
}

// Write persists the metadata file into dirPath.
func (m *Metadata) Write(dirPath string) error {
	filePath := filepath.Join(dirPath, MetadataFilename)

	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("encode metadata JSON: %w", err)
	}
	return nil
}

// Load reads a previously written metadata file.
func (m *Metadata) Load(filePath string) error {
	jsonFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("couldn't open metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	decoder := json.NewDecoder(jsonFile)
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decode metadata JSON: %w", err)
	}
	return nil
}
