package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// EnvConfigPath names the environment variable holding the config file path
// used when none is given explicitly.
const EnvConfigPath = "PANEL_DDNS_CONFIG"

// Mode selects which options are required.
type Mode int

const (
	// ModeOneShot updates the records once to a given value.
	ModeOneShot Mode = iota
	// ModeDynamic watches the public IP and updates on every change.
	ModeDynamic
)

// Config holds the updater settings. Every field can also be set on the
// command line, which takes precedence over the file.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Domains List `yaml:"domains"`
	Types   List `yaml:"type"`
	Names   List `yaml:"name"`

	// Value is the record content used by a one-shot update.
	Value string `yaml:"value"`

	URLs        List          `yaml:"urls"`
	Interval    time.Duration `yaml:"interval"`
	MetricsAddr string        `yaml:"metrics_addr"`
	LockFile    string        `yaml:"lock_file"`
}

// Load reads .env from the working directory if present, then the config
// file at path, or at $PANEL_DDNS_CONFIG when path is empty. Without a file
// an empty Config is returned.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return &Config{}, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the YAML config file at path. ${ENV_VAR} references in
// string values are expanded.
func LoadFromPath(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parsing config file %s: %w", path, err)
	}

	cfg.expandEnv()
	return &cfg, nil
}

func (c *Config) expandEnv() {
	for _, s := range []*string{&c.BaseURL, &c.Username, &c.Password, &c.Value, &c.MetricsAddr, &c.LockFile} {
		*s = os.ExpandEnv(*s)
	}
	for _, l := range []List{c.Domains, c.Types, c.Names, c.URLs} {
		for i := range l {
			l[i] = os.ExpandEnv(l[i])
		}
	}
}

// MissingFieldsError lists the options a command needs but did not get,
// by their command line names.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "config: missing required options: " + strings.Join(e.Fields, ", ")
}

// Validate checks that everything mode needs is set.
func (c *Config) Validate(mode Mode) error {
	var missing []string
	require := func(ok bool, flag string) {
		if !ok {
			missing = append(missing, flag)
		}
	}

	require(c.Username != "", "--user")
	require(c.Password != "", "--password")
	require(len(c.Domains) > 0, "--domain")
	switch mode {
	case ModeOneShot:
		require(c.Value != "", "--value")
	case ModeDynamic:
		require(len(c.URLs) > 0, "--url")
		require(c.Interval > 0, "--interval")
	}

	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}
