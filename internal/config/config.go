// Package config loads taskforge's configuration, following the load shape
// of manifold's root config.go (YAML file plus environment overrides) but
// wired to yaml.v3 and godotenv, the libraries actually declared as direct
// dependencies, rather than the teacher's yaml.v2 import.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig mirrors manifold's DatabaseConfig shape.
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

// SynthConfig carries the Code Synthesis back-end's credentials, matching
// the recognized options in spec.md §6 Environment.
type SynthConfig struct {
	Model   string `yaml:"synthModel"`
	APIKey  string `yaml:"synthApiKey"`
	APIBase string `yaml:"synthApiBase"`
}

// RedisConfig configures the optional catalog read cache (invalidated on
// write).
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// SandboxConfig configures the docker-based container synthesized tools
// are compiled and run in, mirroring internal/agents/codeeval.go's
// "code-sandbox" image convention.
type SandboxConfig struct {
	Image          string `yaml:"image"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Config is taskforge's top-level configuration.
type Config struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Synth    SynthConfig    `yaml:"synth"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	// CatalogURL is the Tool Catalog's connection string (§6 Environment);
	// cmd/taskforged uses it when database.connection_string is empty.
	CatalogURL string `yaml:"catalogUrl"`
	// StaticDir is loaded (default "./synthesized") but no component reads
	// it: synthesized source text is not written to disk.
	StaticDir string `yaml:"staticDir"`
	// MaxSynthDepth is loaded (default 5) but no component reads it: the
	// executor does not cap synthesis attempts per plan.
	MaxSynthDepth int `yaml:"maxSynthDepth"`
	// KafkaBrokers, when non-empty, enables optional event fan-out (§B).
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`
}

func defaults() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          8090,
		LogLevel:      "info",
		MaxSynthDepth: 5,
		StaticDir:     "./synthesized",
		Sandbox:       SandboxConfig{Image: "code-sandbox", TimeoutSeconds: 60},
	}
}

// Load reads filename (if it exists), applies a .env overlay the way
// manifold's main.go does via godotenv, then applies process environment
// overrides, and returns the resolved Config.
func Load(filename string) (*Config, error) {
	cfg := defaults()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				pterm.Error.Printf("failed to read config file %s: %v\n", filename, err)
				return nil, fmt.Errorf("read config %s: %w", filename, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			pterm.Error.Printf("failed to parse config file %s: %v\n", filename, err)
			return nil, fmt.Errorf("parse config %s: %w", filename, err)
		}
	}

	// Best-effort .env overlay, same as manifold's CLI entrypoint.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	pterm.Success.Printf("config loaded (host=%s port=%d log_level=%s)\n", cfg.Host, cfg.Port, cfg.LogLevel)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKFORGE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("TASKFORGE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKFORGE_CATALOG_URL"); v != "" {
		cfg.CatalogURL = v
	}
	if v := os.Getenv("TASKFORGE_DB_CONN"); v != "" {
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("TASKFORGE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TASKFORGE_SYNTH_MODEL"); v != "" {
		cfg.Synth.Model = v
	}
	if v := os.Getenv("TASKFORGE_SYNTH_API_KEY"); v != "" {
		cfg.Synth.APIKey = v
	}
	if v := os.Getenv("TASKFORGE_SYNTH_API_BASE"); v != "" {
		cfg.Synth.APIBase = v
	}
	if v := os.Getenv("TASKFORGE_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TASKFORGE_KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
}
