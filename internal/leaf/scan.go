package leaf

import (
	"os"
	"path/filepath"
)

// ScanDirectory lists the regular files directly under dir and returns
// them as a LocalFile set keyed by filename, using each file's modtime
// (truncated to whole seconds) as its version: version is the origin's
// last-modified timestamp in whole seconds.
func ScanDirectory(dir string) (map[string]LocalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]LocalFile, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files[e.Name()] = LocalFile{
			Filename: e.Name(),
			Version:  info.ModTime().Unix(),
		}
	}
	return files, nil
}

// PathIn joins dir and filename for reading/writing a local file's
// bytes.
func PathIn(dir, filename string) string {
	return filepath.Join(dir, filename)
}
