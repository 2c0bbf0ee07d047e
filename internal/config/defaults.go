package config

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: "~/.local/share/clipper/staging",
			PublishDir: "~/.local/share/clipper/publish",
			LogDir:     "~/.local/share/clipper/logs",
			APIBind:    "127.0.0.1:7460",
		},
		Storage: Storage{
			PublicBaseURL: "http://127.0.0.1:7460/media",
		},
		Sourcing: Sourcing{
			DownloadTimeout: 300,
		},
		Encoding: Encoding{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			EncodeTimeout: 600,
		},
		Tracking: Tracking{
			AnalyzerBinary: "",
			AnalyzeTimeout: 300,
		},
		Workflow: Workflow{
			QueuePollInterval:   5,
			ErrorRetryInterval:  10,
			HeartbeatInterval:   15,
			HeartbeatTimeout:    120,
			MaxRetries:          3,
			StaleWorkspaceHours: 24,
			ClientPollInterval:  2,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Plans: map[string]Plan{
			"free": {
				MaxResolution:    "720p",
				WatermarkForced:  true,
				DailyClipLimit:   5,
				MonthlyClipLimit: 30,
				Priority:         0,
			},
			"pro": {
				MaxResolution:    "1080p",
				WatermarkForced:  false,
				DailyClipLimit:   50,
				MonthlyClipLimit: 500,
				Priority:         1,
			},
			"studio": {
				MaxResolution:    "4k",
				WatermarkForced:  false,
				DailyClipLimit:   -1,
				MonthlyClipLimit: -1,
				Priority:         2,
			},
		},
	}
}
