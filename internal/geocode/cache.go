package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jamo/photoframe/internal/logging"
)

// Geocoder turns a coordinate into a place name. An empty name with a nil
// error means the service knows no place there.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// MinRequestInterval is the spacing enforced between external lookups.
const MinRequestInterval = time.Second

// Entry is one cached coordinate.
type Entry struct {
	Key   string
	Place string
	Found bool
}

// Cache memoises reverse lookups by rounded coordinate and persists every
// new result, including misses, to a JSON file.
type Cache struct {
	path     string
	geocoder Geocoder
	limiter  *rate.Limiter
	logger   *slog.Logger

	lookupMu sync.Mutex

	mu      sync.Mutex
	entries map[string]*string
}

// NewCache loads the cache at path. A missing or corrupt file starts empty.
func NewCache(path string, geocoder Geocoder, logger *slog.Logger) *Cache {
	c := &Cache{
		path:     path,
		geocoder: geocoder,
		limiter:  rate.NewLimiter(rate.Every(MinRequestInterval), 1),
		logger:   logging.NewComponentLogger(logger, "geocode"),
		entries:  make(map[string]*string),
	}
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load location cache", "path", path, logging.Error(err))
	}
	return c
}

// Key rounds a coordinate to four decimals, roughly 11 metres.
func Key(lat, lon float64) string {
	return formatCoord(lat) + "," + formatCoord(lon)
}

func formatCoord(v float64) string {
	s := strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Peek returns a cached answer without contacting the geocoder. cached is
// false on a miss.
func (c *Cache) Peek(lat, lon float64) (place string, found, cached bool) {
	return c.peek(Key(lat, lon))
}

func (c *Cache) peek(key string) (place string, found, cached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", false, false
	}
	if v == nil {
		return "", false, true
	}
	return *v, true, true
}

// Lookup returns the place for a coordinate. Misses go to the geocoder at
// most once per rounded key; failures are remembered as "no place".
func (c *Cache) Lookup(ctx context.Context, lat, lon float64) (string, bool) {
	key := Key(lat, lon)

	if place, found, cached := c.peek(key); cached {
		c.logger.Debug("cache hit", "key", key)
		return place, found
	}
	if c.geocoder == nil {
		return "", false
	}

	// The lock is not held across the request so Peek stays responsive.
	c.lookupMu.Lock()
	defer c.lookupMu.Unlock()
	if place, found, cached := c.peek(key); cached {
		return place, found
	}

	if err := c.limiter.Wait(ctx); err != nil {
		// Cancelled before the request went out, so nothing is learned.
		return "", false
	}
	place, err := c.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		c.logger.Warn("reverse geocoding failed", "key", key, logging.Error(err))
		place = ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if place == "" {
		c.entries[key] = nil
	} else {
		c.entries[key] = &place
	}
	if err := c.save(); err != nil {
		c.logger.Warn("failed to save location cache", "path", c.path, logging.Error(err))
	}
	return place, place != ""
}

// SetMinInterval changes the spacing between external lookups.
func (c *Cache) SetMinInterval(d time.Duration) {
	if d <= 0 {
		c.limiter.SetLimit(rate.Inf)
		return
	}
	c.limiter.SetLimit(rate.Every(d))
}

// Entries lists the cache sorted by key.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for key, v := range c.entries {
		e := Entry{Key: key}
		if v != nil {
			e.Place, e.Found = *v, true
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry and removes the cache file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*string)
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	c.logger.Info("location cache cleared")
	return nil
}

func (c *Cache) load() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries map[string]*string
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	c.entries = entries
	if c.entries == nil {
		c.entries = make(map[string]*string)
	}
	c.logger.Debug("loaded location cache", "entries", len(c.entries))
	return nil
}

// save writes the whole cache atomically. Callers hold c.mu.
func (c *Cache) save() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
