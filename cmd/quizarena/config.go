package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server settings, loadable from YAML with environment
// overrides.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Game struct {
		AutoAdvance    bool `yaml:"auto_advance"`
		RevealDwellSec int  `yaml:"reveal_dwell_sec"`
		EndGraceSec    int  `yaml:"end_grace_sec"`
	} `yaml:"game"`
	Content struct {
		Dir string `yaml:"dir"`
	} `yaml:"content"`
}

func defaultConfig() Config {
	var c Config
	c.Server.Addr = ":8080"
	c.NATS.SubjectPrefix = "quiz.events"
	c.Game.RevealDwellSec = 5
	c.Game.EndGraceSec = 30
	return c
}

// loadConfig reads the optional YAML config file, then applies environment
// overrides on top.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Addr = getEnv("QUIZ_ADDR", config.Server.Addr)
	config.NATS.URL = getEnv("QUIZ_NATS_URL", config.NATS.URL)
	config.NATS.SubjectPrefix = getEnv("QUIZ_NATS_SUBJECT_PREFIX", config.NATS.SubjectPrefix)
	config.Content.Dir = getEnv("QUIZ_CONTENT_DIR", config.Content.Dir)
	config.Game.AutoAdvance = getEnvAsBool("QUIZ_AUTO_ADVANCE", config.Game.AutoAdvance)
	config.Game.RevealDwellSec = getEnvAsInt("QUIZ_REVEAL_DWELL_SEC", config.Game.RevealDwellSec)
	config.Game.EndGraceSec = getEnvAsInt("QUIZ_END_GRACE_SEC", config.Game.EndGraceSec)

	return config, nil
}

func (c Config) revealDwell() time.Duration {
	return time.Duration(c.Game.RevealDwellSec) * time.Second
}

func (c Config) endGrace() time.Duration {
	return time.Duration(c.Game.EndGraceSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
