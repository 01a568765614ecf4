package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = "3000"
	defaultAllowedOrigin = "*"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type RazorpayConfig struct {
	KeyID         string `yaml:"key_id"`
	KeySecret     string `yaml:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

type MonitoringConfig struct {
	StatusURL string `yaml:"status_url"`
}

type Config struct {
	Mocked     bool             `yaml:"mocked"`
	Server     ServerConfig     `yaml:"server"`
	Razorpay   RazorpayConfig   `yaml:"razorpay"`
	CORS       CORSConfig       `yaml:"cors"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

var loadedConfig *Config

// gets the config path from the program arguments, or CONFIG_PATH.
// an empty path is valid and means configuration comes from the environment only
func GetConfigPath() (string, error) {
	if len(os.Args) >= 2 {
		return os.Args[1], nil
	}

	return strings.TrimSpace(os.Getenv("CONFIG_PATH")), nil
}

// loads the YAML config at path (optional), then applies environment overrides and defaults
func LoadConfig(path string) error {
	config := Config{}

	if path != "" {
		configBytes, err := ioutil.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %v", path, err)
		}

		err = yaml.Unmarshal(configBytes, &config)
		if err != nil {
			return fmt.Errorf("failed to parse config file %s: %v", path, err)
		}
	}

	applyEnvironment(&config)
	applyDefaults(&config)

	loadedConfig = &config
	return nil
}

func GetConfig() (*Config, error) {
	if loadedConfig == nil {
		return nil, fmt.Errorf("config has not been loaded")
	}

	return loadedConfig, nil
}

func applyEnvironment(config *Config) {
	if v := strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID")); v != "" {
		config.Razorpay.KeyID = v
	}
	if v := strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")); v != "" {
		config.Razorpay.KeySecret = v
	}
	if v := strings.TrimSpace(os.Getenv("RAZORPAY_WEBHOOK_SECRET")); v != "" {
		config.Razorpay.WebhookSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("RAZORPAY_BASE_URL")); v != "" {
		config.Razorpay.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGIN")); v != "" {
		config.CORS.AllowedOrigin = v
	}
	if v := strings.TrimSpace(os.Getenv("HOST")); v != "" {
		config.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		config.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("MONITORING_STATUS_URL")); v != "" {
		config.Monitoring.StatusURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MOCKED")); v == "true" || v == "1" {
		config.Mocked = true
	}
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = defaultPort
	}
	if config.CORS.AllowedOrigin == "" {
		config.CORS.AllowedOrigin = defaultAllowedOrigin
	}
	if config.Monitoring.StatusURL == "" {
		config.Monitoring.StatusURL = fmt.Sprintf("http://localhost:%s/", config.Server.Port)
	}
}
