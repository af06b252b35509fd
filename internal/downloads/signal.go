package downloads

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamo/photoframe/internal/logging"
)

// Signal is the marker a downloader leaves behind after adding photos.
type Signal struct {
	LastDownloadTimestamp time.Time `json:"last_download_timestamp"`
	PhotosAdded           int       `json:"photos_added"`
	TotalPhotos           int       `json:"total_photos"`
	DownloadSessionID     string    `json:"download_session_id"`
}

// WriteSignal records a finished download session at path.
func WriteSignal(path string, photosAdded, totalPhotos int) (Signal, error) {
	sig := Signal{
		LastDownloadTimestamp: time.Now().UTC(),
		PhotosAdded:           photosAdded,
		TotalPhotos:           totalPhotos,
		DownloadSessionID:     uuid.NewString(),
	}
	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return Signal{}, fmt.Errorf("marshal signal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Signal{}, fmt.Errorf("create signal directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Signal{}, fmt.Errorf("write signal: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Signal{}, fmt.Errorf("replace signal: %w", err)
	}
	return sig, nil
}

// ReadSignal loads the signal file. ok is false when no download has been
// recorded yet.
func ReadSignal(path string) (sig Signal, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Signal{}, false, nil
	}
	if err != nil {
		return Signal{}, false, fmt.Errorf("read signal: %w", err)
	}
	if err := json.Unmarshal(data, &sig); err != nil {
		return Signal{}, false, fmt.Errorf("parse signal: %w", err)
	}
	return sig, true, nil
}

// Watcher polls the signal file for downloads newer than its last check.
type Watcher struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	lastCheck time.Time
}

func NewWatcher(path string, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:   path,
		logger: logging.NewComponentLogger(logger, "downloads"),
		now:    time.Now,
	}
}

// Mark records now as the last check, so only later downloads count as new.
func (w *Watcher) Mark() {
	w.mu.Lock()
	w.lastCheck = w.now().UTC()
	w.mu.Unlock()
}

// LastCheck returns the time of the last check, zero if none.
func (w *Watcher) LastCheck() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastCheck
}

// ShouldCheck reports whether interval has elapsed since the last check.
func (w *Watcher) ShouldCheck(interval time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastCheck.IsZero() {
		return true
	}
	return w.now().Sub(w.lastCheck) >= interval
}

// Check returns the signal when a download finished after the last check.
// The first check of a fresh watcher reports any existing signal. Read
// failures are logged and treated as "nothing new".
func (w *Watcher) Check() (Signal, bool) {
	sig, ok, err := ReadSignal(w.path)
	w.mu.Lock()
	defer w.mu.Unlock()
	previous := w.lastCheck
	w.lastCheck = w.now().UTC()

	if err != nil {
		w.logger.Warn("download signal unreadable", "path", w.path, logging.Error(err))
		return Signal{}, false
	}
	if !ok {
		return Signal{}, false
	}
	if !previous.IsZero() && !sig.LastDownloadTimestamp.After(previous) {
		return Signal{}, false
	}
	w.logger.Info("new photos detected", "photos_added", sig.PhotosAdded, "session", sig.DownloadSessionID)
	return sig, true
}
