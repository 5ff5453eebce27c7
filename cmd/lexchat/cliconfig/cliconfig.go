// Package cliconfig holds the flags every lexchat subcommand shares and turns
// them into a validated configuration.
package cliconfig

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lexchat/pkg/config"
)

// Options are the shared flags. Flags win over every other source.
type Options struct {
	ConfigPath string
	EnvFile    string
	Model      string
	BaseURL    string
	Debug      bool
}

// AddFlags registers the shared flags on cmd.
func (o *Options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "Path to config file (default ~/.lexchat/config.toml)")
	cmd.Flags().StringVar(&o.EnvFile, "env-file", "", "Path to dotenv file (default .env)")
	cmd.Flags().StringVarP(&o.Model, "model", "m", "", "Gemini model name")
	cmd.Flags().StringVar(&o.BaseURL, "base-url", "", "Gemini API base URL")
	cmd.Flags().BoolVar(&o.Debug, "debug", false, "Enable debug logging")
}

// Load resolves and validates the configuration. A missing API key fails
// here, before any turn is attempted.
func (o *Options) Load() (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: o.ConfigPath,
		EnvFile:    o.EnvFile,
	})
	if err != nil {
		return config.Config{}, fmt.Errorf("could not load configuration: %w", err)
	}

	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
