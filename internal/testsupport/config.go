package testsupport

import (
	"path/filepath"
	"testing"

	"lr2ise/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Mapping.Domain = "corp.example.com"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSearch points the test config at a search API base URL.
func WithSearch(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Search.BaseURL = baseURL
		b.cfg.Search.APIToken = token
	}
}

// WithISE points the test config at an ISE base URL.
func WithISE(baseURL, username, password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ISE.URL = baseURL
		b.cfg.ISE.Username = username
		b.cfg.ISE.Password = password
	}
}

// WithDomain overrides the mapping domain. An empty value clears it.
func WithDomain(domain string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mapping.Domain = domain
	}
}

// WithPoll sets the poll interval and timeout in seconds.
func WithPoll(intervalSeconds, timeoutSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poll.IntervalSeconds = intervalSeconds
		b.cfg.Poll.TimeoutSeconds = timeoutSeconds
	}
}

// WithoutHistory disables run history recording.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
