package downloads

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another downloader holds the directory lock.
var ErrLocked = errors.New("another download is already running")

const lockName = ".download.lock"

// Lock takes the exclusive download lock for dir. The caller must Unlock it.
func Lock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock, nil
}

type cachedFile struct {
	path    string
	size    int64
	modTime time.Time
}

// DirSize sums the sizes of the regular files under dir.
func DirSize(dir string) (int64, error) {
	files, err := listFiles(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.size
	}
	return total, nil
}

// Enforce deletes the oldest files under dir until the total size fits in
// limit bytes. It returns the removed paths.
func Enforce(dir string, limit int64) ([]string, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= limit {
		return nil, nil
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	var removed []string
	for _, f := range files {
		if total <= limit {
			break
		}
		if err := os.Remove(f.path); err != nil {
			return removed, fmt.Errorf("evict %s: %w", f.path, err)
		}
		total -= f.size
		removed = append(removed, f.path)
	}
	return removed, nil
}

// GB converts a CACHE_SIZE_LIMIT_GB value to bytes.
func GB(n int) int64 {
	return int64(n) << 30
}

func listFiles(dir string) ([]cachedFile, error) {
	var files []cachedFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, cachedFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, nil
}
