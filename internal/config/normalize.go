package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSearch()
	c.normalizeQuery()
	c.normalizePoll()
	c.normalizeISE()
	c.normalizeMapping()
	c.normalizeHistory()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSearch() {
	c.Search.BaseURL = strings.TrimRight(strings.TrimSpace(envFallback(c.Search.BaseURL, envSearchBaseURL)), "/")
	c.Search.APIToken = strings.TrimSpace(envFallback(c.Search.APIToken, envSearchToken))
	if c.Search.RequestTimeout <= 0 {
		c.Search.RequestTimeout = defaultSearchRequestTimeout
	}
}

func (c *Config) normalizeQuery() {
	if c.Query.MaxMessages <= 0 {
		c.Query.MaxMessages = defaultQueryMaxMessages
	}
	if c.Query.QueryTimeout <= 0 {
		c.Query.QueryTimeout = defaultQueryTimeout
	}
	c.Query.SearchMode = strings.TrimSpace(c.Query.SearchMode)
	if c.Query.SearchMode == "" {
		c.Query.SearchMode = defaultSearchMode
	}
	c.Query.DateMin = strings.TrimSpace(c.Query.DateMin)
	c.Query.DateMax = strings.TrimSpace(c.Query.DateMax)
	c.Query.Lookback = strings.TrimSpace(c.Query.Lookback)
	if c.Query.LogSources == nil {
		c.Query.LogSources = []int{}
	}
	if c.Query.LogSourceIDs == nil {
		c.Query.LogSourceIDs = []int{}
	}
	if c.Query.Filter == nil {
		c.Query.Filter = map[string]any{}
	}
}

func (c *Config) normalizePoll() {
	if c.Poll.IntervalSeconds <= 0 {
		c.Poll.IntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Poll.TimeoutSeconds <= 0 {
		c.Poll.TimeoutSeconds = defaultPollTimeoutSeconds
	}
}

func (c *Config) normalizeISE() {
	c.ISE.URL = strings.TrimRight(strings.TrimSpace(envFallback(c.ISE.URL, envISEURL)), "/")
	c.ISE.Username = strings.TrimSpace(envFallback(c.ISE.Username, envISEUsername))
	c.ISE.Password = envFallback(c.ISE.Password, envISEPassword)
	if c.ISE.RequestTimeout <= 0 {
		c.ISE.RequestTimeout = defaultISERequestTimeout
	}
}

func (c *Config) normalizeMapping() {
	c.Mapping.Domain = strings.TrimSpace(envFallback(c.Mapping.Domain, envMappingDomain))
	if c.Mapping.LogonMarker == "" {
		c.Mapping.LogonMarker = defaultLogonMarker
	}
	c.Mapping.AgentFallback = strings.TrimSpace(c.Mapping.AgentFallback)
}

func (c *Config) normalizeHistory() {
	if c.History.KeepRuns < 0 {
		c.History.KeepRuns = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envFallback(value, key string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return env
	}
	return value
}
