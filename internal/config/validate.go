package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate ensures the configuration is structurally usable. Credentials are
// checked separately by RequireSearch, RequireISE, and RequireDomain so that
// commands which never contact a backend can run with a partial config.
func (c *Config) Validate() error {
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateQuery(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateISE(); err != nil {
		return err
	}
	if err := c.validateMapping(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.BaseURL != "" {
		if err := validateHTTPURL(c.Search.BaseURL); err != nil {
			return fmt.Errorf("search.base_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateQuery() error {
	if c.Query.MaxMessages > maxQueryMessagesUpperLimit {
		return fmt.Errorf("query.max_messages must be at most %d", maxQueryMessagesUpperLimit)
	}
	if c.Query.SearchMode == "" {
		return errors.New("query.search_mode must be set")
	}
	var minTime, maxTime time.Time
	var err error
	if c.Query.DateMin != "" {
		if minTime, err = time.Parse(time.RFC3339, c.Query.DateMin); err != nil {
			return fmt.Errorf("query.date_min must be RFC 3339: %w", err)
		}
	}
	if c.Query.DateMax != "" {
		if maxTime, err = time.Parse(time.RFC3339, c.Query.DateMax); err != nil {
			return fmt.Errorf("query.date_max must be RFC 3339: %w", err)
		}
	}
	if !minTime.IsZero() && !maxTime.IsZero() && !minTime.Before(maxTime) {
		return errors.New("query.date_min must be before query.date_max")
	}
	if c.Query.Lookback != "" {
		if c.Query.DateMin != "" || c.Query.DateMax != "" {
			return errors.New("query.lookback cannot be combined with query.date_min or query.date_max")
		}
		if _, err := c.LookbackDuration(); err != nil {
			return err
		}
	}
	for _, id := range c.Query.LogSources {
		if id < 0 {
			return errors.New("query.log_sources entries must be non-negative")
		}
	}
	for _, id := range c.Query.LogSourceIDs {
		if id < 0 {
			return errors.New("query.log_source_ids entries must be non-negative")
		}
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.IntervalSeconds > c.Poll.TimeoutSeconds {
		return errors.New("poll.interval_seconds must not exceed poll.timeout_seconds")
	}
	return nil
}

func (c *Config) validateISE() error {
	if c.ISE.URL != "" {
		if err := validateHTTPURL(c.ISE.URL); err != nil {
			return fmt.Errorf("ise.url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateMapping() error {
	if strings.TrimSpace(c.Mapping.LogonMarker) == "" {
		return errors.New("mapping.logon_marker must not be blank")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

// LookbackDuration parses query.lookback. A blank value yields zero.
func (c *Config) LookbackDuration() (time.Duration, error) {
	if c.Query.Lookback == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Query.Lookback)
	if err != nil {
		return 0, fmt.Errorf("query.lookback: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("query.lookback must be positive")
	}
	return d, nil
}

// RequireSearch reports whether the LogRhythm connection settings are present.
func (c *Config) RequireSearch() error {
	if c.Search.BaseURL == "" {
		return missingSetting("search.base_url", envSearchBaseURL)
	}
	if c.Search.APIToken == "" {
		return missingSetting("search.api_token", envSearchToken)
	}
	return nil
}

// RequireISE reports whether the ISE connection settings are present.
func (c *Config) RequireISE() error {
	if c.ISE.URL == "" {
		return missingSetting("ise.url", envISEURL)
	}
	if c.ISE.Username == "" {
		return missingSetting("ise.username", envISEUsername)
	}
	if c.ISE.Password == "" {
		return missingSetting("ise.password", envISEPassword)
	}
	return nil
}

// RequireDomain reports whether a mapping domain is configured.
func (c *Config) RequireDomain() error {
	if c.Mapping.Domain == "" {
		return missingSetting("mapping.domain", envMappingDomain)
	}
	return nil
}

func missingSetting(key, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = configPathHint
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (%s)", key, env, defaultPath, configInitHint)
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
