package cache

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kilnbuild/kiln/src/fs"
)

const stampFileName = ".kiln-stamp"

// StampPath returns the sentinel file path for a directory output. Directory
// mtimes don't reliably change when their contents do, so up-to-date checks
// read this file's mtime in place of the directory's own.
func StampPath(outputDir string) string {
	return filepath.Join(outputDir, stampFileName)
}

// WriteStamp (re)writes a directory output's sentinel file so its mtime
// reflects the moment the directory was last populated.
func WriteStamp(outputDir string) error {
	return fs.WriteFile(strings.NewReader(time.Now().UTC().Format(time.RFC3339Nano)), StampPath(outputDir), 0644)
}
