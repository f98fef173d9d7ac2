// Package config loads service configuration from an optional YAML file and
// the process environment. A local .env file is read first when present so
// development runs do not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/db"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config struct for YAML configuration
type Config struct {
	DBDriver     string   `yaml:"DB_DRIVER"`
	DBPath       string   `yaml:"DB_PATH"`
	DBHost       string   `yaml:"DB_HOST"`
	DBPort       int      `yaml:"DB_PORT"`
	DBUser       string   `yaml:"DB_USER"`
	DBPassword   string   `yaml:"DB_PASSWORD"`
	DBName       string   `yaml:"DB_NAME"`
	DBSSLMode    string   `yaml:"DB_SSLMODE"`
	KafkaBrokers []string `yaml:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC"`
}

// Load builds the configuration in three layers: defaults, the YAML file at
// path when given, and environment variables on top.
func Load(path string) (*Config, error) {
	// optional .env for local runs
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver: db.DriverSQLite,
		DBPath:   "data/ares_vr_cache.sqlite",
		Topic:    "ownership.events",
	}

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("ARES_CACHE_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.DBHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.DBPort = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.DBSSLMode = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		parts := strings.Split(v, ",")
		brokers := make([]string, 0, len(parts))
		for _, part := range parts {
			if broker := strings.TrimSpace(part); broker != "" {
				brokers = append(brokers, broker)
			}
		}
		cfg.KafkaBrokers = brokers
	}
	if v := os.Getenv("TOPIC"); v != "" {
		cfg.Topic = v
	}
}

// DBConfig maps the loaded settings onto the repository configuration.
func (c *Config) DBConfig() *db.Config {
	return &db.Config{
		Driver:   c.DBDriver,
		Path:     c.DBPath,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}
