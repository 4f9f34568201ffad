package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// checksumFile returns the hex SHA-256 digest of the file at path.
func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// writeChecksum persists the digest next to the archive in the same
// "<hex>  <filename>" form sha256sum produces, so the archive can be
// verified with standard tooling.
func writeChecksum(archivePath, checksum string) error {
	line := fmt.Sprintf("%s  %s\n", checksum, filepath.Base(archivePath))
	return os.WriteFile(archivePath+checksumSuffix, []byte(line), 0o644)
}
