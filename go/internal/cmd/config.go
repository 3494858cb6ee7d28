package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/davidyun/swoon/go/internal/models"
)

// Config is the sync agent configuration, loaded from YAML with
// environment overrides for the connection endpoints.
type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Transport struct {
		Kind          string `yaml:"kind"` // "websocket" or "nats"
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"transport"`

	Snapshot struct {
		Path string `yaml:"path"` // empty means in-memory
	} `yaml:"snapshot"`

	Viewer struct {
		UserID string `yaml:"user_id"`
	} `yaml:"viewer"`

	Candidates []CandidateConfig `yaml:"candidates"`

	StatsAddr string `yaml:"stats_addr"`
}

// CandidateConfig declares one vote subscription to mount.
type CandidateConfig struct {
	ID            string              `yaml:"id"`
	Category      models.VoteCategory `yaml:"category"`
	OverrideTotal *int                `yaml:"override_total"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func defaultConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	c.API.BaseURL = getEnv("SWOON_API_URL", firstNonEmpty(c.API.BaseURL, "https://api.swoon.dating/v1"))
	c.Transport.Kind = firstNonEmpty(c.Transport.Kind, "websocket")
	c.Transport.URL = getEnv("SWOON_PUSH_URL", c.Transport.URL)
	c.Transport.SubjectPrefix = firstNonEmpty(c.Transport.SubjectPrefix, "swoon.entity")
	c.Viewer.UserID = getEnv("SWOON_USER_ID", c.Viewer.UserID)
	c.StatsAddr = firstNonEmpty(c.StatsAddr, ":8090")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
