package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (cl *ConfigLoader) LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Redis.Host == "" {
		config.Redis.Host = "localhost"
	}
	if config.Redis.Port == 0 {
		config.Redis.Port = 6379
	}
	if config.Scan.BarSelection == "" {
		config.Scan.BarSelection = "last_closed"
	}
	if config.Scan.BatchSize == 0 {
		config.Scan.BatchSize = 25
	}
	if len(config.Scan.Timeframes) == 0 {
		config.Scan.Timeframes = []string{"4h", "1d"}
	}
	if config.Notification.Channel == "" {
		config.Notification.Channel = "market-scanner"
	}
	if config.Monitoring.PrometheusPort == 0 {
		config.Monitoring.PrometheusPort = 9090
	}

	return &config, nil
}
