package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/slighter12/cocos-mcp-go/mcp"
)

// Config represents the MCP server configuration
type Config struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version" yaml:"version"`
	Description string      `json:"description" yaml:"description"`
	Server      Server      `json:"server" yaml:"server"`
	Transports  []Transport `json:"transports" yaml:"transports"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Bridge      Bridge      `json:"bridge" yaml:"bridge"`
	Engine      Engine      `json:"engine" yaml:"engine"`
}

// Server represents server configuration
type Server struct {
	Host  string `json:"host" yaml:"host"`
	Port  int    `json:"port" yaml:"port"`
	Debug bool   `json:"debug" yaml:"debug"`
}

// Transport represents a transport configuration
type Transport struct {
	Type    string            `json:"type" yaml:"type"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
}

// Bridge configures the command round trip to the editor plugin.
type Bridge struct {
	CommandTimeoutMS     int     `json:"command_timeout_ms" yaml:"command_timeout_ms"`
	StaleAfterSeconds    int     `json:"stale_after_seconds" yaml:"stale_after_seconds"`
	MaxRequestsPerSecond float64 `json:"max_requests_per_second" yaml:"max_requests_per_second"`
	Burst                int     `json:"burst" yaml:"burst"`
}

// Engine configures the settle waits inserted between a scene write and the
// read that verifies it.
type Engine struct {
	WriteSettleMS   int `json:"write_settle_ms" yaml:"write_settle_ms"`
	RemovalSettleMS int `json:"removal_settle_ms" yaml:"removal_settle_ms"`
}

// CommandTimeout returns the bridge command timeout as a duration.
func (b Bridge) CommandTimeout() time.Duration {
	return time.Duration(b.CommandTimeoutMS) * time.Millisecond
}

// StaleAfter returns how long an editor registration stays fresh without a ping.
func (b Bridge) StaleAfter() time.Duration {
	return time.Duration(b.StaleAfterSeconds) * time.Second
}

// WriteSettle returns the wait after a property write.
func (e Engine) WriteSettle() time.Duration {
	return time.Duration(e.WriteSettleMS) * time.Millisecond
}

// RemovalSettle returns the wait after a component removal attempt.
func (e Engine) RemovalSettle() time.Duration {
	return time.Duration(e.RemovalSettleMS) * time.Millisecond
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &Config{
		Name:        "cocos-mcp-go",
		Version:     "0.1.0",
		Description: "Go-based Model Context Protocol server for the Cocos Creator scene editor",
		Server: Server{
			Host:  "localhost",
			Port:  9080,
			Debug: false,
		},
		Transports: []Transport{
			{
				Type:    "stdio",
				Enabled: true,
			},
			{
				Type:    "streamable_http",
				Enabled: true,
				URL:     "http://localhost:9080/mcp",
				Headers: map[string]string{
					"Accept":               "application/json, text/event-stream",
					"Content-Type":         "application/json",
					"MCP-Protocol-Version": mcp.ProtocolVersion,
				},
			},
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Path:   filepath.Join(home, ".cocos-mcp", "logs", "mcp.log"),
		},
		Bridge: Bridge{
			CommandTimeoutMS:     8000,
			StaleAfterSeconds:    30,
			MaxRequestsPerSecond: 20,
			Burst:                5,
		},
		Engine: Engine{
			WriteSettleMS:   200,
			RemovalSettleMS: 100,
		},
	}
}

// LoadConfig loads the configuration from a JSON, JSONC or YAML file.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := decodeConfig(path, data, cfg); err != nil {
		return nil, err
	}

	// Environment variables have the highest priority.
	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeConfig(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing yaml config: %w", err)
		}
	default:
		// Plain JSON passes through jsonc unchanged.
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return fmt.Errorf("parsing json config: %w", err)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if debug := os.Getenv("MCP_DEBUG"); debug != "" {
		if parsed, err := strconv.ParseBool(debug); err == nil {
			cfg.Server.Debug = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_DEBUG value %q: %v", debug, err)
		}
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	overrideInt("MCP_BRIDGE_COMMAND_TIMEOUT_MS", &cfg.Bridge.CommandTimeoutMS)
	overrideInt("MCP_BRIDGE_STALE_AFTER_SECONDS", &cfg.Bridge.StaleAfterSeconds)
	overrideInt("MCP_ENGINE_WRITE_SETTLE_MS", &cfg.Engine.WriteSettleMS)
	overrideInt("MCP_ENGINE_REMOVAL_SETTLE_MS", &cfg.Engine.RemovalSettleMS)

	if rps := os.Getenv("MCP_BRIDGE_MAX_REQUESTS_PER_SECOND"); rps != "" {
		if parsed, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.Bridge.MaxRequestsPerSecond = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_BRIDGE_MAX_REQUESTS_PER_SECOND value %q: %v", rps, err)
		}
	}
}

func overrideInt(name string, target *int) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("warning: ignoring invalid %s value %q: %v", name, raw, err)
		return
	}
	*target = parsed
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	for i := range c.Transports {
		c.Transports[i].Type = strings.ToLower(strings.TrimSpace(c.Transports[i].Type))
		c.Transports[i].URL = strings.TrimSpace(c.Transports[i].URL)
	}
	if c.Bridge.Burst <= 0 {
		c.Bridge.Burst = 1
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid port number")
	}

	if c.Server.Host == "" {
		return errors.New("host cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	if c.Logging.Path == "" {
		return errors.New("log path cannot be empty")
	}

	if len(c.Transports) == 0 {
		return errors.New("at least one transport must be enabled")
	}

	validTransportTypes := map[string]bool{
		"stdio":           true,
		"streamable_http": true,
	}

	enabledTransports := 0
	for _, t := range c.Transports {
		if !validTransportTypes[t.Type] {
			return fmt.Errorf("invalid transport type: %s", t.Type)
		}
		if t.Enabled {
			enabledTransports++
		}
	}

	if enabledTransports == 0 {
		return errors.New("at least one transport must be enabled")
	}

	if c.Bridge.CommandTimeoutMS < 100 || c.Bridge.CommandTimeoutMS > 120000 {
		return fmt.Errorf("invalid bridge command timeout %dms: expected range 100..120000", c.Bridge.CommandTimeoutMS)
	}
	if c.Bridge.StaleAfterSeconds < 1 || c.Bridge.StaleAfterSeconds > 3600 {
		return fmt.Errorf("invalid bridge stale-after %ds: expected range 1..3600", c.Bridge.StaleAfterSeconds)
	}
	if c.Bridge.MaxRequestsPerSecond < 0 {
		return errors.New("bridge max requests per second cannot be negative")
	}

	// Settle waits are heuristics, not completion signals; zero is allowed for
	// hosts that apply synchronously.
	if c.Engine.WriteSettleMS < 0 || c.Engine.WriteSettleMS > 5000 {
		return fmt.Errorf("invalid engine write settle %dms: expected range 0..5000", c.Engine.WriteSettleMS)
	}
	if c.Engine.RemovalSettleMS < 0 || c.Engine.RemovalSettleMS > 5000 {
		return fmt.Errorf("invalid engine removal settle %dms: expected range 0..5000", c.Engine.RemovalSettleMS)
	}

	return nil
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	for _, candidate := range []string{"config/mcp_config.json", "config/mcp_config.jsonc", "config/mcp_config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".cocos-mcp", "config", "mcp_config.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := SaveConfig(NewConfig(), path); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
