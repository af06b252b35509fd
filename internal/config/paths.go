package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the base directory for every per-user file.
const HomeEnv = "PHOTOFRAME_HOME"

// Paths locates the per-user files of the slideshow. All files live directly
// in Base unless a caller overrides them.
type Paths struct {
	Base string
}

// DefaultPaths resolves the base directory from PHOTOFRAME_HOME or the
// user's home directory.
func DefaultPaths() (Paths, error) {
	if base := strings.TrimSpace(os.Getenv(HomeEnv)); base != "" {
		return NewPaths(base)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return Paths{Base: home}, nil
}

// NewPaths expands a leading ~ and returns paths rooted at base.
func NewPaths(base string) (Paths, error) {
	expanded, err := expandHome(base)
	if err != nil {
		return Paths{}, err
	}
	return Paths{Base: expanded}, nil
}

// EnsureBase creates the base directory.
func (p Paths) EnsureBase() error {
	return os.MkdirAll(p.Base, 0o755)
}

func (p Paths) ConfigFile() string        { return filepath.Join(p.Base, ".photo_slideshow_config.json") }
func (p Paths) LocationCacheFile() string { return filepath.Join(p.Base, ".photo_slideshow_cache.json") }
func (p Paths) SignalFile() string        { return filepath.Join(p.Base, ".photo_slideshow_download_signal.json") }
func (p Paths) LogFile() string           { return filepath.Join(p.Base, ".photo_slideshow.log") }
func (p Paths) LibraryDB() string         { return filepath.Join(p.Base, ".photo_slideshow_library.db") }
func (p Paths) DownloadDir() string       { return filepath.Join(p.Base, ".photo_slideshow_downloads") }

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
