package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// validators maps every known key to its check. Decoding into the typed
// field already rejects values of the wrong JSON type.
var validators = map[string]func(*Config) error{
	"album_name":           func(c *Config) error { return nil },
	"filter_by_people":     func(c *Config) error { return nil },
	"filter_people_names":  func(c *Config) error { return nil },
	"filter_by_places":     func(c *Config) error { return nil },
	"filter_by_keywords":   func(c *Config) error { return nil },
	"people_filter_logic":  func(c *Config) error { return oneOf(c.PeopleFilterLogic, "AND", "OR") },
	"places_filter_logic":  func(c *Config) error { return oneOf(c.PlacesFilterLogic, "AND", "OR") },
	"overall_filter_logic": func(c *Config) error { return oneOf(c.OverallFilterLogic, "AND", "OR") },
	"min_people_count":     func(c *Config) error { return positive(c.MinPeopleCount) },
	"max_photos_limit":     func(c *Config) error { return positive(c.MaxPhotosLimit) },
	"shuffle_photos":       func(c *Config) error { return nil },
	"album_missing_policy": func(c *Config) error {
		return oneOf(c.AlbumMissingPolicy, AlbumMissingFallback, AlbumMissingFail)
	},

	"slideshow_interval":       func(c *Config) error { return between(c.SlideshowInterval, 1, 86400) },
	"portrait_pairing":         func(c *Config) error { return nil },
	"MONITOR_RESOLUTION":       validateResolution,
	"OVERLAY_PLACEMENT":        func(c *Config) error { return oneOf(c.OverlayPlacement, "TOP", "BOTTOM") },
	"OVERLAY_ALIGNMENT":        func(c *Config) error { return oneOf(c.OverlayAlignment, "LEFT", "CENTER", "RIGHT") },
	"TRANSITION_EFFECT":        func(c *Config) error { return oneOf(c.TransitionEffect, "fade", "crossfade", "cut") },
	"show_countdown_timer":     func(c *Config) error { return nil },
	"photo_history_cache_size": func(c *Config) error { return positive(c.PhotoHistoryCacheSize) },
	"max_recent_photos":        func(c *Config) error { return positive(c.MaxRecentPhotos) },
	"video_playback_enabled":   func(c *Config) error { return nil },
	"video_max_duration":       func(c *Config) error { return between(c.VideoMaxDuration, 1, 86400) },

	"CACHE_SIZE_LIMIT_GB":          func(c *Config) error { return between(c.CacheSizeLimitGB, 1, 100) },
	"FORCE_CACHE_REFRESH":          func(c *Config) error { return nil },
	"fallback_photo_limit":         func(c *Config) error { return positive(c.FallbackPhotoLimit) },
	"min_fallback_photos":          func(c *Config) error { return positive(c.MinFallbackPhotos) },
	"progress_log_interval":        func(c *Config) error { return positive(c.ProgressLogInterval) },
	"download_batch_size":          func(c *Config) error { return positive(c.DownloadBatchSize) },
	"cache_refresh_check_interval": func(c *Config) error { return positive(c.CacheRefreshCheckInterval) },
	"max_year_percentage": func(c *Config) error {
		if c.MaxYearPercentage <= 0 || c.MaxYearPercentage > 1 {
			return errors.New("must be in (0, 1]")
		}
		return nil
	},

	"voice_commands_enabled":      func(c *Config) error { return nil },
	"voice_command_delay_ms":      func(c *Config) error { return between(c.VoiceCommandDelayMS, 0, 60000) },
	"voice_command_variants_path": func(c *Config) error { return nil },
	"custom_voice_variants":       validateCustomVariants,

	"geocoder_url":    func(c *Config) error { return nil },
	"immich_album_id": func(c *Config) error { return nil },

	"DEBUG_SCALING":   func(c *Config) error { return nil },
	"LOGGING_VERBOSE": func(c *Config) error { return nil },
	"log_format":      func(c *Config) error { return oneOf(c.LogFormat, "console", "json") },
}

func oneOf(value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
}

func positive(value int) error {
	if value <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func between(value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("must be between %d and %d", lo, hi)
	}
	return nil
}

func validateResolution(c *Config) error {
	if c.MonitorResolution == "auto" {
		return nil
	}
	_, _, err := parseResolution(c.MonitorResolution)
	return err
}

func validateCustomVariants(c *Config) error {
	for command := range c.CustomVoiceVariants {
		if err := oneOf(command, "next", "back", "pause", "resume"); err != nil {
			return fmt.Errorf("command %q: %w", command, err)
		}
	}
	return nil
}
