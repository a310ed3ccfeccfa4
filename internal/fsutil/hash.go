package fsutil

import (
	"fmt"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// Observation is what the build knows about a file on disk.
type Observation struct {
	Path    string
	Exists  bool
	Hash    digest.Digest
	ModTime time.Time
}

// HashFile returns the sha256 digest of a file's content.
func HashFile(fs afero.Fs, path string) (digest.Digest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return d, nil
}

// Observe stats and hashes a file. A missing file is not an error; it is
// reported with Exists false.
func Observe(fs afero.Fs, path string) (Observation, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Observation{Path: path}, nil
		}
		return Observation{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Observation{}, fmt.Errorf("%s is a directory", path)
	}
	h, err := HashFile(fs, path)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Path: path, Exists: true, Hash: h, ModTime: info.ModTime()}, nil
}
