package config

const (
	defaultServerBaseURL         = "http://127.0.0.1:8000"
	defaultRequestTimeoutSeconds = 30
	defaultUploadMaxBytes        = 2 << 30
	defaultStreamRetryMS         = 3000
	defaultPollIntervalMS        = 5000
	defaultFetchTimeoutMS        = 4000
	defaultStuckAfterFailures    = 2
	defaultUIDebounceMS          = 250
	defaultTextDebounceMS        = 500
	defaultPlaybackDebounceMS    = 1000
	defaultCachePath             = "~/.local/share/vidash/cache.db"
	defaultTimeUpdateMS          = 250
	defaultSurfaceCols           = 64
	defaultSurfaceRows           = 18
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:               defaultServerBaseURL,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			UploadMaxBytes:        defaultUploadMaxBytes,
		},
		Sync: Sync{
			StreamRetryMS:      defaultStreamRetryMS,
			PollIntervalMS:     defaultPollIntervalMS,
			FetchTimeoutMS:     defaultFetchTimeoutMS,
			StuckAfterFailures: defaultStuckAfterFailures,
		},
		WriteBack: WriteBack{
			UIDebounceMS:       defaultUIDebounceMS,
			TextDebounceMS:     defaultTextDebounceMS,
			PlaybackDebounceMS: defaultPlaybackDebounceMS,
		},
		Cache: Cache{
			Path: defaultCachePath,
		},
		Player: Player{
			TimeUpdateMS: defaultTimeUpdateMS,
			SurfaceCols:  defaultSurfaceCols,
			SurfaceRows:  defaultSurfaceRows,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
