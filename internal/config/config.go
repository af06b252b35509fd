package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Config holds every slideshow setting. Field names mirror the keys of the
// on-disk JSON file, including the upper-case display keys.
type Config struct {
	AlbumName          string   `json:"album_name"`
	FilterByPeople     bool     `json:"filter_by_people"`
	FilterPeopleNames  []string `json:"filter_people_names"`
	FilterByPlaces     []string `json:"filter_by_places"`
	FilterByKeywords   []string `json:"filter_by_keywords"`
	PeopleFilterLogic  string   `json:"people_filter_logic"`
	PlacesFilterLogic  string   `json:"places_filter_logic"`
	OverallFilterLogic string   `json:"overall_filter_logic"`
	MinPeopleCount     int      `json:"min_people_count"`
	MaxPhotosLimit     int      `json:"max_photos_limit"`
	ShufflePhotos      bool     `json:"shuffle_photos"`
	AlbumMissingPolicy string   `json:"album_missing_policy"`

	SlideshowInterval     int    `json:"slideshow_interval"`
	PortraitPairing       bool   `json:"portrait_pairing"`
	MonitorResolution     string `json:"MONITOR_RESOLUTION"`
	OverlayPlacement      string `json:"OVERLAY_PLACEMENT"`
	OverlayAlignment      string `json:"OVERLAY_ALIGNMENT"`
	TransitionEffect      string `json:"TRANSITION_EFFECT"`
	ShowCountdownTimer    bool   `json:"show_countdown_timer"`
	PhotoHistoryCacheSize int    `json:"photo_history_cache_size"`
	MaxRecentPhotos       int    `json:"max_recent_photos"`
	VideoPlaybackEnabled  bool   `json:"video_playback_enabled"`
	VideoMaxDuration      int    `json:"video_max_duration"`

	CacheSizeLimitGB          int     `json:"CACHE_SIZE_LIMIT_GB"`
	ForceCacheRefresh         bool    `json:"FORCE_CACHE_REFRESH"`
	FallbackPhotoLimit        int     `json:"fallback_photo_limit"`
	MinFallbackPhotos         int     `json:"min_fallback_photos"`
	ProgressLogInterval       int     `json:"progress_log_interval"`
	DownloadBatchSize         int     `json:"download_batch_size"`
	MaxYearPercentage         float64 `json:"max_year_percentage"`
	CacheRefreshCheckInterval int     `json:"cache_refresh_check_interval"`

	VoiceCommandsEnabled     bool                `json:"voice_commands_enabled"`
	VoiceCommandDelayMS      int                 `json:"voice_command_delay_ms"`
	VoiceCommandVariantsPath string              `json:"voice_command_variants_path"`
	CustomVoiceVariants      map[string][]string `json:"custom_voice_variants"`

	GeocoderURL   string `json:"geocoder_url"`
	ImmichAlbumID string `json:"immich_album_id"`

	DebugScaling   bool   `json:"DEBUG_SCALING"`
	LoggingVerbose bool   `json:"LOGGING_VERBOSE"`
	LogFormat      string `json:"log_format"`

	// Extra holds keys this version does not know about. They are kept
	// untouched so a newer or hand-edited file survives a save.
	Extra map[string]json.RawMessage `json:"-"`
}

// Load reads the configuration file at path. Invalid values are replaced by
// their defaults and reported as warnings. A missing file is created with
// defaults. Load always returns a usable configuration.
func Load(path string) (*Config, []string) {
	cfg := Default()
	var warnings []string

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("no config file found, created defaults at %s", path))
		if err := cfg.Save(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not create config file: %v", err))
		}
		return &cfg, warnings
	}
	if err != nil {
		return &cfg, append(warnings, fmt.Sprintf("read config %s: %v; using defaults", path, err))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &cfg, append(warnings, fmt.Sprintf("parse config %s: %v; using defaults", path, err))
	}

	warnings = append(warnings, cfg.apply(raw)...)
	return &cfg, warnings
}

// apply merges raw key/value pairs into c, validating known keys.
func (c *Config) apply(raw map[string]json.RawMessage) []string {
	var warnings []string
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		check, known := validators[key]
		if !known {
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = value
			continue
		}

		trial := Default()
		if err := decodeKey(&trial, key, value); err != nil {
			warnings = append(warnings, invalidWarning(key, value, err))
			continue
		}
		if err := check(&trial); err != nil {
			warnings = append(warnings, invalidWarning(key, value, err))
			continue
		}
		// The trial copy accepted the value, so decoding into c cannot fail.
		_ = decodeKey(c, key, value)
	}
	return warnings
}

func decodeKey(dst *Config, key string, value json.RawMessage) error {
	obj := map[string]json.RawMessage{key: value}
	buf, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	return dec.Decode(dst)
}

func invalidWarning(key string, value json.RawMessage, err error) string {
	def, _ := defaultValue(key)
	return fmt.Sprintf("invalid value for %s: %s (%v). Using default: %s", key, strings.TrimSpace(string(value)), err, def)
}

func defaultValue(key string) (string, bool) {
	def := Default()
	buf, err := json.Marshal(def)
	if err != nil {
		return "", false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(buf, &m); err != nil {
		return "", false
	}
	v, ok := m[key]
	return string(v), ok
}

// Save writes the configuration, including pass-through keys, as indented JSON.
func (c *Config) Save(path string) error {
	data, err := c.MarshalIndent()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// MarshalIndent renders the flat key/value view of the configuration.
func (c *Config) MarshalIndent() ([]byte, error) {
	flat, err := c.Flatten()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Flatten returns every setting keyed by its file name.
func (c *Config) Flatten() (map[string]json.RawMessage, error) {
	type plain Config
	buf, err := json.Marshal((*plain)(c))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(buf, &flat); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	for key, value := range c.Extra {
		if _, known := flat[key]; !known {
			flat[key] = value
		}
	}
	return flat, nil
}

// Resolution parses MONITOR_RESOLUTION. ok is false for "auto".
func (c *Config) Resolution() (width, height int, ok bool) {
	if strings.EqualFold(c.MonitorResolution, "auto") {
		return 0, 0, false
	}
	w, h, err := parseResolution(c.MonitorResolution)
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

func parseResolution(value string) (int, int, error) {
	parts := strings.Split(value, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT")
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("dimensions must be positive")
	}
	return w, h, nil
}

// UsesFilters reports whether people, place or keyword filters are configured.
func (c *Config) UsesFilters() bool {
	return c.FilterByPeople || len(c.FilterPeopleNames) > 0 || len(c.FilterByPlaces) > 0 || len(c.FilterByKeywords) > 0
}
