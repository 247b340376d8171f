package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/opub/mkrs.info/internal/api"
	"github.com/opub/mkrs.info/internal/client"
	"github.com/opub/mkrs.info/internal/pipeline"
	"github.com/opub/mkrs.info/internal/server"
)

// Config holds all application configuration
type Config struct {
	Client   client.Config   `yaml:"client"`
	API      api.Config      `yaml:"api"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	Server   server.Config   `yaml:"server"`
}

// DefaultConfig returns default configuration for the entire application
func DefaultConfig() Config {
	cfg := Config{
		Client:   client.DefaultConfig(),
		API:      api.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Server:   server.DefaultConfig(),
	}
	// the server hosts whatever the pipeline produces
	cfg.Server.SnapshotPath = cfg.Pipeline.SnapshotPath
	cfg.Server.TraitsPath = cfg.Pipeline.TraitsPath
	return cfg
}

// Load reads configuration from an optional YAML file layered over the
// defaults, then applies environment overrides. An empty path skips the
// file and returns defaults plus environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides the settings operators most often change per deploy
func applyEnv(cfg *Config) {
	if v := os.Getenv("MKRS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MKRS_SNAPSHOT"); v != "" {
		cfg.Pipeline.SnapshotPath = v
		cfg.Server.SnapshotPath = v
	}
	if v := os.Getenv("MKRS_HASH_LIST"); v != "" {
		cfg.Pipeline.HashListPath = v
	}
	if v := os.Getenv("MKRS_MAGICEDEN"); v != "" {
		cfg.API.MagicEden = v
	}
	if v := os.Getenv("MKRS_HOWRARE"); v != "" {
		cfg.API.HowRare = v
	}
}
