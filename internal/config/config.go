package config

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/dkaya/expbench/internal/core/domain"
)

const defaultArtifactsPath = "results"

// Config holds server settings and the static experiment registry. Loaded
// once at startup and treated as immutable afterwards.
type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	ExperimentsPath string `yaml:"experiments_path"`

	// LogSessionLimit caps websocket log sessions; "0" disables the cap.
	// Declared as a string in YAML ("10m") and parsed here.
	RawLogSessionLimit string        `yaml:"log_session_limit"`
	LogSessionLimit    time.Duration `yaml:"-"`

	Experiments []domain.Experiment `yaml:"experiments"`
}

// Load reads the YAML config file, applies defaults and environment
// overrides (EXPBENCH_LISTEN_ADDR, EXPBENCH_EXPERIMENTS_PATH), and validates
// the experiment declarations.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a raw YAML config document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		ListenAddr:      ":8000",
		ExperimentsPath: "../experiments",
		LogSessionLimit: 10 * time.Minute,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RawLogSessionLimit != "" {
		limit, err := time.ParseDuration(cfg.RawLogSessionLimit)
		if err != nil {
			return nil, fmt.Errorf("bad log_session_limit %q: %w", cfg.RawLogSessionLimit, err)
		}
		cfg.LogSessionLimit = limit
	}

	if addr := os.Getenv("EXPBENCH_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if dir := os.Getenv("EXPBENCH_EXPERIMENTS_PATH"); dir != "" {
		cfg.ExperimentsPath = dir
	}

	seen := make(map[string]bool, len(cfg.Experiments))
	for i := range cfg.Experiments {
		exp := &cfg.Experiments[i]
		if exp.Name == "" {
			return nil, fmt.Errorf("experiment %d: name is required", i)
		}
		if seen[exp.Name] {
			return nil, fmt.Errorf("duplicate experiment %q", exp.Name)
		}
		seen[exp.Name] = true

		if exp.ArtifactsPath == "" {
			exp.ArtifactsPath = defaultArtifactsPath
		}
		if exp.Memory != "" {
			bytes, err := units.RAMInBytes(exp.Memory)
			if err != nil {
				return nil, fmt.Errorf("experiment %q: bad memory limit %q: %w", exp.Name, exp.Memory, err)
			}
			exp.MemoryBytes = bytes
		}
	}
	return cfg, nil
}
