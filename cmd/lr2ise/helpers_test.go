package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	stateDir   string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	chdir(t, base)
	for _, key := range []string{"LR_API_URL", "LR_API_TOKEN", "ISE_URL", "ISE_USERNAME", "ISE_PASSWORD", "LR2ISE_DOMAIN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	return &cliTestEnv{
		baseDir:    base,
		stateDir:   filepath.Join(base, "state"),
		configPath: filepath.Join(base, "config.toml"),
	}
}

type testConfig struct {
	searchURL string
	token     string
	iseURL    string
	domain    string
	extra     string
}

func (env *cliTestEnv) writeConfig(t *testing.T, tc testConfig) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[search]
base_url = %q
api_token = %q

[poll]
interval_seconds = 1
timeout_seconds = 5

[ise]
url = %q
username = "svc"
password = "secret"

[mapping]
domain = %q

[logging]
level = "error"
%s`,
		env.stateDir,
		filepath.Join(env.baseDir, "logs"),
		tc.searchURL,
		tc.token,
		tc.iseURL,
		tc.domain,
		tc.extra,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
