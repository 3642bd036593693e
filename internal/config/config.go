// Package config loads the YAML configuration file that parameterises
// everything the core needs to stand up a connection: which link to
// open, where to persist history, and which external services (MQTT,
// the HTTP API) to start.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"automon/internal/transport"
)

// Config is the top-level shape of the YAML config file (§6).
type Config struct {
	Transport struct {
		Type    string `yaml:"type"`
		Address string `yaml:"address"`
		Baud    int    `yaml:"baud"`
	} `yaml:"transport"`

	Testing struct {
		UseTestTCP bool   `yaml:"useTestTCP"`
		TCPAddress string `yaml:"tcpAddress"`
	} `yaml:"testing"`

	Datastore struct {
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		InfluxDB struct {
			URL    string `yaml:"url"`
			Org    string `yaml:"org"`
			Bucket string `yaml:"bucket"`
			Token  string `yaml:"token"`
		} `yaml:"influxdb"`
	} `yaml:"datastore"`

	RuleStore struct {
		Path string `yaml:"path"`
	} `yaml:"rulestore"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"clientId"`
	} `yaml:"mqtt"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Vehicle struct {
		DefaultThresholds struct {
			RPMRedline     float64 `yaml:"rpm_redline"`
			CoolantTempMax float64 `yaml:"coolant_temp_max"`
		} `yaml:"default_thresholds"`
	} `yaml:"vehicle"`
}

// LoadConfig reads and parses the YAML config file at filename.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", filename, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}
	return &cfg, nil
}

// TransportConfig resolves the transport.Config to use, preferring the
// test TCP override (a local adapter simulator) when configured.
func (c *Config) TransportConfig() transport.Config {
	if c.Testing.UseTestTCP {
		return transport.Config{Type: "tcp", Address: c.Testing.TCPAddress}
	}
	return transport.Config{
		Type:    c.Transport.Type,
		Address: c.Transport.Address,
		Baud:    c.Transport.Baud,
	}
}
