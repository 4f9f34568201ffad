package backup

import "time"

// Entry maps one source path to its location inside the archive tree.
// Manifest order is significant: it is the staging and log order.
type Entry struct {
	Source      string
	ArchivePath string
}

// Skip records a manifest entry that could not be staged. Missing or
// unreadable sources are expected on hosts where a service is not
// installed, so these are informational, not failures.
type Skip struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Archive describes the output of one backup run.
type Archive struct {
	Name      string
	Path      string
	SizeBytes int64
	Checksum  string
	CreatedAt time.Time
	Skipped   []Skip
	Pruned    []string
}
