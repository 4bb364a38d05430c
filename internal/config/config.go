package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the versioned lockstep.yaml file. Every field is
// optional; Defaults fills what the file leaves out.
type ServerConfig struct {
	Version int `yaml:"version"`
	Server  struct {
		Bind      string `yaml:"bind"`
		Port      int    `yaml:"port"`
		Prefix    string `yaml:"prefix"`
		PublicURL string `yaml:"public_url"`
		TLSCert   string `yaml:"tls_cert"`
		TLSKey    string `yaml:"tls_key"`
	} `yaml:"server"`
	Rooms struct {
		MaxPlayers        int           `yaml:"max_players"`
		GracePeriod       time.Duration `yaml:"grace_period"`
		CodeLength        int           `yaml:"code_length"`
		BroadcastInterval int           `yaml:"broadcast_interval"`
	} `yaml:"rooms"`
	Scenarios struct {
		Dirs     []string `yaml:"dirs"`
		Postgres bool     `yaml:"postgres"`
	} `yaml:"scenarios"`
	MQTT struct {
		URL         string `yaml:"url"`
		TopicPrefix string `yaml:"topic_prefix"`
		ClientID    string `yaml:"client_id"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *ServerConfig {
	var c ServerConfig
	c.Version = 1
	c.applyDefaults()
	return &c
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Bind == "" {
		c.Server.Bind = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.Prefix == "" {
		c.Server.Prefix = "/"
	}
	if c.Rooms.MaxPlayers == 0 {
		c.Rooms.MaxPlayers = 6
	}
	if c.Rooms.GracePeriod == 0 {
		c.Rooms.GracePeriod = 60 * time.Second
	}
	if c.Rooms.CodeLength == 0 {
		c.Rooms.CodeLength = 6
	}
	if c.Rooms.BroadcastInterval == 0 {
		c.Rooms.BroadcastInterval = 5
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "lockstep"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "lockstep-server"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate rejects values the server cannot run with.
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Rooms.MaxPlayers < 1 {
		return fmt.Errorf("rooms.max_players must be at least 1, got %d", c.Rooms.MaxPlayers)
	}
	if c.Rooms.CodeLength < 4 {
		return fmt.Errorf("rooms.code_length must be at least 4, got %d", c.Rooms.CodeLength)
	}
	if c.Rooms.GracePeriod < 0 {
		return fmt.Errorf("rooms.grace_period must not be negative")
	}
	if c.Rooms.BroadcastInterval < 1 {
		return fmt.Errorf("rooms.broadcast_interval must be at least 1, got %d", c.Rooms.BroadcastInterval)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	return nil
}

// TLSEnabled reports whether both TLS files are configured.
func (c *ServerConfig) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

func LoadServerConfig(path string) (*ServerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported lockstep.yaml version: %d", cfg.Version)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
