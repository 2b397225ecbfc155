package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	BundleSource string
	DataPath     string
	ListenPort   int
	MetricsPort  int
	FetchTimeout time.Duration
}

type ConfigFile struct {
	Bundle struct {
		Source       string `yaml:"source"`
		FetchTimeout string `yaml:"fetchTimeout"`
	} `yaml:"bundle"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	fetchTimeout := 5 * time.Second
	if d, err := time.ParseDuration(config.Bundle.FetchTimeout); err == nil {
		fetchTimeout = d
	}
	fetchTimeout = getDurationOrDefault("FETCH_TIMEOUT", fetchTimeout)

	settings := Settings{
		BundleSource: getEnvOrDefault("BUNDLE_SOURCE", config.Bundle.Source),
		DataPath:     getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ListenPort:   getIntFromEnvOrConfig("LISTEN_PORT", config.Server.Port),
		MetricsPort:  getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort),
		FetchTimeout: fetchTimeout,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		BundleSource: getEnvOrDefault("BUNDLE_SOURCE", "bundle.json"),
		DataPath:     os.Getenv("DATA_PATH"), // optional
		ListenPort:   getIntOrDefault("LISTEN_PORT", 8090),
		MetricsPort:  getIntOrDefault("METRICS_PORT", 8080),
		FetchTimeout: getDurationOrDefault("FETCH_TIMEOUT", 5*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultPort(key)
}

func defaultPort(key string) int {
	switch key {
	case "LISTEN_PORT":
		return 8090
	case "METRICS_PORT":
		return 8080
	}
	return 0
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.BundleSource == "" {
		return fmt.Errorf("bundle source cannot be empty")
	}

	if settings.ListenPort < 1024 || settings.ListenPort > 65535 {
		return fmt.Errorf("listen port must be between 1024 and 65535, got %d", settings.ListenPort)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", settings.ListenPort)
	}

	if settings.FetchTimeout < time.Second || settings.FetchTimeout > time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 1m, got %v", settings.FetchTimeout)
	}

	return nil
}
