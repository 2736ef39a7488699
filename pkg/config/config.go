// Package config loads nestfold settings from a TOML file.
//
// Configuration lives in nestfold.toml at the vault root (or a path given
// explicitly). Every field has a working default, so a vault without a
// config file is fully usable.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
)

// FileName is the config file looked up at the vault root.
const FileName = "nestfold.toml"

// Config holds all nestfold settings.
type Config struct {
	// ParentField is the frontmatter key carrying the parent declaration.
	ParentField string `toml:"parent_field"`

	Vault  VaultConfig  `toml:"vault"`
	Build  BuildConfig  `toml:"build"`
	Server ServerConfig `toml:"server"`
}

// VaultConfig scopes which files a scan picks up.
type VaultConfig struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// BuildConfig tunes the derivation processor.
type BuildConfig struct {
	// ReadyTimeout bounds how long a build waits for the graph to become
	// ready before aborting.
	ReadyTimeout duration `toml:"ready_timeout"`

	// PollInterval is the readiness re-check cadence.
	PollInterval duration `toml:"poll_interval"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ParentField: "parent",
		Build: BuildConfig{
			ReadyTimeout: duration(10 * time.Second),
			PollInterval: duration(100 * time.Millisecond),
		},
		Server: ServerConfig{Addr: ":7474"},
	}
}

// Load reads the config file at path, layering it over the defaults.
// A missing file is not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, nferrors.Wrap(nferrors.ErrCodeInvalidFormat, err, "read config %q", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, nferrors.Wrap(nferrors.ErrCodeInvalidFormat, err, "parse config %q", path)
	}
	if cfg.ParentField == "" {
		cfg.ParentField = "parent"
	}
	return cfg, nil
}

// LoadVault loads the config file from the vault root.
func LoadVault(vaultDir string) (Config, error) {
	return Load(filepath.Join(vaultDir, FileName))
}

// ReadyTimeoutDuration returns the build ready timeout as a time.Duration.
func (c BuildConfig) ReadyTimeoutDuration() time.Duration { return time.Duration(c.ReadyTimeout) }

// PollIntervalDuration returns the readiness poll interval as a time.Duration.
func (c BuildConfig) PollIntervalDuration() time.Duration { return time.Duration(c.PollInterval) }

// duration decodes TOML strings like "10s" into a time.Duration.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}
