// Package config loads lexchat settings from defaults, an optional TOML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/lexchat/pkg/gemini"
)

// Environment variables read by Load.
const (
	EnvAPIKey  = "GEMINI_API_KEY"
	EnvModel   = "LEXCHAT_MODEL"
	EnvBaseURL = "LEXCHAT_BASE_URL"
	EnvListen  = "LEXCHAT_LISTEN"
	EnvDebug   = "LEXCHAT_DEBUG"
)

// ErrMissingCredential is a startup failure: no API key was configured.
var ErrMissingCredential = errors.New("config: " + EnvAPIKey + " is not set")

// Config is the resolved configuration.
type Config struct {
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	ListenAddr string `toml:"listen"`
	Debug      bool   `toml:"debug"`
	LogFile    string `toml:"log_file"`
}

// Default returns the built-in configuration. It has no API key.
func Default() Config {
	return Config{
		Model:      gemini.DefaultModel,
		BaseURL:    gemini.DefaultBaseURL,
		ListenAddr: ":8080",
	}
}

// Validate checks the startup preconditions.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingCredential
	}
	return nil
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigPath is a TOML file. When empty, DefaultPath is tried and a missing
	// file is not an error. An explicit path must exist.
	ConfigPath string

	// EnvFile is a dotenv file; a missing file is ignored. Default ".env".
	EnvFile string

	// LookupEnv overrides os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// DefaultPath returns ~/.lexchat/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".lexchat", "config.toml"), nil
}

// Load resolves the configuration. It does not call Validate.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := opts.ConfigPath
	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("could not read env file %s: %w", envFile, err)
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if v, ok := get(EnvAPIKey); ok {
		cfg.APIKey = v
	}
	if v, ok := get(EnvModel); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := get(EnvBaseURL); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := get(EnvListen); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := get(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = debug
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("could not load config file %s: %w", path, err)
	}
	return nil
}

// GeminiConfig maps the configuration onto the client's.
func (c Config) GeminiConfig() gemini.Config {
	return gemini.Config{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
	}
}
