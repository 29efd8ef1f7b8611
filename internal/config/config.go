// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads shopdesk configuration.
//
// Values come from built-in defaults, then ~/.shopdesk/config.toml (or the
// file named by --config), then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/jeranaias/shopdesk/internal/guard"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Duration is a time.Duration written as a Go duration string ("5m", "20s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete shopdesk configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Session SessionConfig `toml:"session"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// APIConfig points at the back-office REST API.
type APIConfig struct {
	BaseURL string   `toml:"base_url" validate:"required,url"`
	Timeout Duration `toml:"timeout" validate:"gt=0"`
	// RequestsPerSecond caps client-side request rate; 0 disables the cap.
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
}

// SessionConfig holds the idle timeout and the session file location.
type SessionConfig struct {
	Timeout Duration `toml:"timeout" validate:"gt=0"`
	Warning Duration `toml:"warning" validate:"gt=0"`
	Path    string   `toml:"path" validate:"required"`
}

// StorageConfig locates the local draft database.
type StorageConfig struct {
	Path string `toml:"path" validate:"required"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	// Path is the log file; Load turns an empty value into
	// ~/.shopdesk/shopdesk.log.
	Path string `toml:"path" validate:"required"`
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Dir returns the shopdesk configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shopdesk"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8080/api",
			Timeout:           Duration(15 * time.Second),
			RequestsPerSecond: 10,
		},
		Session: SessionConfig{
			Timeout: Duration(guard.DefaultTimeout),
			Warning: Duration(guard.DefaultWarning),
			Path:    filepath.Join(dir, "session.json"),
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "drafts.db"),
		},
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(dir, "shopdesk.log"),
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads path (or the default path when empty). A missing file yields the
// defaults. Environment overrides are applied last, then the result is
// validated.
func Load(path string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(dir, "config.toml")
	}

	cfg := Default(dir)
	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	cfg.ApplyEnvOverrides()
	if strings.TrimSpace(cfg.Log.Path) == "" {
		cfg.Log.Path = filepath.Join(dir, "shopdesk.log")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as TOML with owner-only permissions.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# shopdesk configuration")
	fmt.Fprintln(file, "")
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies SHOPDESK_* environment variables:
//   - SHOPDESK_API_URL: api.base_url
//   - SHOPDESK_SESSION_TIMEOUT: session.timeout
//   - SHOPDESK_SESSION_WARNING: session.warning
//   - SHOPDESK_LOG_LEVEL: log.level
//
// Unparseable durations are ignored and the file value is kept.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("SHOPDESK_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if v := os.Getenv("SHOPDESK_SESSION_TIMEOUT"); v != "" {
		var d Duration
		if d.UnmarshalText([]byte(v)) == nil {
			c.Session.Timeout = d
		}
	}
	if v := os.Getenv("SHOPDESK_SESSION_WARNING"); v != "" {
		var d Duration
		if d.UnmarshalText([]byte(v)) == nil {
			c.Session.Warning = d
		}
	}
	if level := os.Getenv("SHOPDESK_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if err := c.GuardConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// GuardConfig returns the idle timing for the session guard.
func (c *Config) GuardConfig() guard.Config {
	return guard.Config{
		Timeout: c.Session.Timeout.Std(),
		Warning: c.Session.Warning.Std(),
	}
}
