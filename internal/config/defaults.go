package config

const (
	defaultDataDir                = "~/.local/share/casefile"
	defaultLogDir                 = "~/.local/share/casefile/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultAutoConfirmThreshold   = 0.85
	defaultLowConfidenceThreshold = 0.50
	defaultExcerptMaxLength       = 500
	defaultSweepBatchSize         = 200
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Gate: Gate{
			AutoConfirmThreshold:   defaultAutoConfirmThreshold,
			LowConfidenceThreshold: defaultLowConfidenceThreshold,
		},
		Excerpt: Excerpt{
			MaxLength: defaultExcerptMaxLength,
		},
		Linking: Linking{
			SweepBatchSize: defaultSweepBatchSize,
		},
	}
}
