package config

const (
	defaultDataDir            = "~/.local/share/ludex"
	defaultLogDir             = "~/.local/share/ludex/logs"
	defaultGiantBombBaseURL   = "https://www.giantbomb.com/api"
	defaultIGDBBaseURL        = "https://api.igdb.com/v4"
	defaultIGDBTokenURL       = "https://id.twitch.tv/oauth2/token"
	defaultOpenCriticBaseURL  = "https://api.opencritic.com/api"
	defaultRequestsPerSecond  = 1.0
	defaultSearchLimit        = 20
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultChoiceTimeoutSecs  = 0
	defaultFilterRediscovered = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		GiantBomb: GiantBomb{
			Enabled:           true,
			BaseURL:           defaultGiantBombBaseURL,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		IGDB: IGDB{
			Enabled:           true,
			BaseURL:           defaultIGDBBaseURL,
			TokenURL:          defaultIGDBTokenURL,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		OpenCritic: OpenCritic{
			Enabled:           false,
			BaseURL:           defaultOpenCriticBaseURL,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Sync: Sync{
			ProviderOrder:             []string{"giantbomb", "igdb", "opencritic"},
			AllowSmartChoose:          true,
			FilterPreviouslyDiscarded: defaultFilterRediscovered,
			SearchLimit:               defaultSearchLimit,
			ChoiceTimeout:             defaultChoiceTimeoutSecs,
		},
		Notify: Notify{
			RequestTimeout: defaultNotifyTimeout,
			SyncEvents:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
