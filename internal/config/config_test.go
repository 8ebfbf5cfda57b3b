package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel-ddns.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("TEST_PANEL_PASSWORD", "s3cret")
	path := writeConfig(t, `base_url: "https://panel.example/server8"
username: alice
password: "${TEST_PANEL_PASSWORD}"
domains:
  - example.com
  - example.org
type: A
name: "www, @"
urls: https://api.ipify.org,https://ifconfig.me/ip
interval: 90s
metrics_addr: ":9090"
lock_file: /run/panel-ddns.lock
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Config{
		BaseURL:     "https://panel.example/server8",
		Username:    "alice",
		Password:    "s3cret",
		Domains:     List{"example.com", "example.org"},
		Types:       List{"A"},
		Names:       List{"www", "@"},
		URLs:        List{"https://api.ipify.org", "https://ifconfig.me/ip"},
		Interval:    90 * time.Second,
		MetricsAddr: ":9090",
		LockFile:    "/run/panel-ddns.lock",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromPath_Empty(t *testing.T) {
	cfg, err := LoadFromPath(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("expected empty config (-want +got):\n%s", diff)
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "usr: alice\n"},
		{"bad interval", "interval: soon\n"},
		{"mapping as list", "domains:\n  a: b\n"},
		{"not yaml", "domains: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFromPath(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoad_UsesEnvPath(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvConfigPath, writeConfig(t, "username: bob\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Username != "bob" {
		t.Errorf("expected username bob, got %q", cfg.Username)
	}
}

func TestLoad_NoFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("expected empty config (-want +got):\n%s", diff)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("TEST_DOTENV_USER", "")
	os.Unsetenv("TEST_DOTENV_USER")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_DOTENV_USER=carol\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, "username: ${TEST_DOTENV_USER}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Username != "carol" {
		t.Errorf("expected username from .env, got %q", cfg.Username)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Username: "alice",
		Password: "s3cret",
		Domains:  List{"example.com"},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		mode    Mode
		missing []string
	}{
		{name: "one-shot complete", mode: ModeOneShot, mutate: func(c *Config) { c.Value = "1.2.3.4" }},
		{name: "one-shot without value", mode: ModeOneShot, mutate: func(*Config) {}, missing: []string{"--value"}},
		{
			name:    "one-shot without credentials",
			mode:    ModeOneShot,
			mutate:  func(c *Config) { c.Username, c.Password, c.Value = "", "", "1.2.3.4" },
			missing: []string{"--user", "--password"},
		},
		{
			name: "dynamic complete",
			mode: ModeDynamic,
			mutate: func(c *Config) {
				c.URLs = List{"https://api.ipify.org"}
				c.Interval = time.Minute
			},
		},
		{
			name:    "dynamic missing everything",
			mode:    ModeDynamic,
			mutate:  func(c *Config) { *c = Config{} },
			missing: []string{"--user", "--password", "--domain", "--url", "--interval"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate(tt.mode)
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var merr *MissingFieldsError
			if !errors.As(err, &merr) {
				t.Fatalf("expected *MissingFieldsError, got %v", err)
			}
			if diff := cmp.Diff(tt.missing, merr.Fields); diff != "" {
				t.Errorf("missing fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want List
	}{
		{"", nil},
		{"example.com", List{"example.com"}},
		{" a.com, ,b.com ", List{"a.com", "b.com"}},
		{",,", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitList(tt.in)); diff != "" {
				t.Errorf("SplitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

// chdir changes the working directory to dir for the duration of the test,
// restoring the previous one on cleanup (stand-in for testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
