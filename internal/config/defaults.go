package config

const (
	defaultConfigPath      = "~/.config/checkflac/config.toml"
	projectConfigName      = "checkflac.toml"
	defaultStateDir        = "~/.local/share/checkflac"
	defaultHistoryFile     = "history.db"
	defaultHistoryEnabled  = true
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultWorkers         = 0
	maxWorkers             = 1024
	defaultContinueOnError = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Check: Check{
			Workers:         defaultWorkers,
			ContinueOnError: defaultContinueOnError,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
