package config

const (
	defaultStateDir             = "~/.local/share/lr2ise"
	defaultLogDir               = "~/.local/share/lr2ise/logs"
	defaultSearchRequestTimeout = 30
	defaultQueryMaxMessages     = 100
	defaultQueryTimeout         = 60
	defaultSearchMode           = "MaxN"
	defaultQueryEventManager    = true
	defaultPollIntervalSeconds  = 5
	defaultPollTimeoutSeconds   = 300
	defaultISERequestTimeout    = 15
	defaultLogonMarker          = "Logon"
	defaultHistoryEnabled       = true
	defaultHistoryKeepRuns      = 500
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	configPathHint              = "~/.config/lr2ise/config.toml"
	configInitHint              = "create with 'lr2ise config init'"
	envSearchBaseURL            = "LR_API_URL"
	envSearchToken              = "LR_API_TOKEN"
	envISEURL                   = "ISE_URL"
	envISEUsername              = "ISE_USERNAME"
	envISEPassword              = "ISE_PASSWORD"
	envMappingDomain            = "LR2ISE_DOMAIN"
	maxQueryMessagesUpperLimit  = 100000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Search: Search{
			RequestTimeout: defaultSearchRequestTimeout,
		},
		Query: Query{
			MaxMessages:  defaultQueryMaxMessages,
			QueryTimeout: defaultQueryTimeout,
			SearchMode:   defaultSearchMode,
			LogSources:   []int{},
			LogSourceIDs: []int{},
			EventManager: defaultQueryEventManager,
			Filter:       map[string]any{},
		},
		Poll: Poll{
			IntervalSeconds: defaultPollIntervalSeconds,
			TimeoutSeconds:  defaultPollTimeoutSeconds,
		},
		ISE: ISE{
			RequestTimeout: defaultISERequestTimeout,
		},
		Mapping: Mapping{
			LogonMarker: defaultLogonMarker,
		},
		History: History{
			Enabled:  defaultHistoryEnabled,
			KeepRuns: defaultHistoryKeepRuns,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
