package config

// Default returns the built-in configuration table.
func Default() Config {
	return Config{
		AlbumName:          "photoframe",
		FilterByPeople:     false,
		FilterPeopleNames:  []string{},
		FilterByPlaces:     []string{},
		FilterByKeywords:   []string{},
		PeopleFilterLogic:  "OR",
		PlacesFilterLogic:  "OR",
		OverallFilterLogic: "AND",
		MinPeopleCount:     1,
		MaxPhotosLimit:     500,
		ShufflePhotos:      true,
		AlbumMissingPolicy: AlbumMissingFallback,

		SlideshowInterval:     10,
		PortraitPairing:       true,
		MonitorResolution:     "auto",
		OverlayPlacement:      "TOP",
		OverlayAlignment:      "CENTER",
		TransitionEffect:      "fade",
		ShowCountdownTimer:    false,
		PhotoHistoryCacheSize: 100,
		MaxRecentPhotos:       50,
		VideoPlaybackEnabled:  false,
		VideoMaxDuration:      10,

		CacheSizeLimitGB:          20,
		ForceCacheRefresh:         false,
		FallbackPhotoLimit:        20,
		MinFallbackPhotos:         10,
		ProgressLogInterval:       1000,
		DownloadBatchSize:         100,
		MaxYearPercentage:         0.3,
		CacheRefreshCheckInterval: 3600,

		VoiceCommandsEnabled:     false,
		VoiceCommandDelayMS:      1500,
		VoiceCommandVariantsPath: "",
		CustomVoiceVariants:      map[string][]string{},

		GeocoderURL:   "https://nominatim.openstreetmap.org/reverse",
		ImmichAlbumID: "",

		DebugScaling:   false,
		LoggingVerbose: false,
		LogFormat:      "console",
	}
}

// Album-missing policies.
const (
	AlbumMissingFallback = "fallback"
	AlbumMissingFail     = "fail"
)
