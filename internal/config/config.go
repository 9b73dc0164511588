// Package config handles configuration loading, validation, and persistence
// for the Quadrelay server.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultLobbyPort  = 3000
	DefaultGamePort   = 3001
	DefaultAPIPort    = 8000
)

// Config is the root configuration structure for Quadrelay.
type Config struct {
	mu   sync.RWMutex
	path string

	Server       ServerConfig       `json:"server"`
	Auth         AuthConfig         `json:"auth"`
	Lobby        LobbyConfig        `json:"lobby"`
	Leaderboards LeaderboardsConfig `json:"leaderboards"`
	Discord      DiscordConfig      `json:"discord"`
	MQTT         MQTTConfig         `json:"mqtt"`
	API          APIConfig          `json:"api"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig contains listener addresses and data paths.
type ServerConfig struct {
	BindAddress string `json:"bind_address"`
	LobbyPort   int    `json:"lobby_port"`
	GamePort    int    `json:"game_port"`
	DataDir     string `json:"data_dir"`
}

// AuthConfig controls how member logins are verified.
type AuthConfig struct {
	// DisableAuth accepts any password for any member name.
	DisableAuth bool `json:"disable_auth"`
	// AutoRegister creates a member account on first login.
	AutoRegister bool `json:"auto_register"`
}

// LobbyConfig holds lobby behaviour settings.
type LobbyConfig struct {
	MOTD string `json:"motd"`
}

// LeaderboardsConfig controls which matches count towards rankings.
type LeaderboardsConfig struct {
	RankedOnly  bool `json:"ranked_only"`
	IncludeVoid bool `json:"include_void"`
}

// DiscordConfig holds Discord webhook notification settings.
type DiscordConfig struct {
	Enabled         bool   `json:"enabled"`
	WebhookURL      string `json:"webhook_url"`
	NotifyOnJoin    bool   `json:"notify_on_join"`
	NotifyOnMatch   bool   `json:"notify_on_match"`
	NotifyOnComment bool   `json:"notify_on_comment"`
	NotifyOnChat    bool   `json:"notify_on_chat"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
}

// APIConfig holds REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress: "0.0.0.0",
			LobbyPort:   DefaultLobbyPort,
			GamePort:    DefaultGamePort,
			DataDir:     "data",
		},
		Auth: AuthConfig{
			AutoRegister: true,
		},
		Leaderboards: LeaderboardsConfig{
			RankedOnly:  true,
			IncludeVoid: false,
		},
		Discord: DiscordConfig{
			NotifyOnJoin:    true,
			NotifyOnMatch:   true,
			NotifyOnComment: true,
		},
		MQTT: MQTTConfig{
			Port:     1883,
			ClientID: "quadrelay",
		},
		API: APIConfig{
			Enabled: true,
			Port:    DefaultAPIPort,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	// This ensures config.json always reflects the complete set of options.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Ensure config directory exists
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetServer returns a copy of the server configuration.
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// GetAuth returns a copy of the auth configuration.
func (c *Config) GetAuth() AuthConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Auth
}

// GetLobby returns a copy of the lobby configuration.
func (c *Config) GetLobby() LobbyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Lobby
}

// SetLobby updates the lobby configuration.
func (c *Config) SetLobby(data LobbyConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Lobby = data
}

// GetLeaderboards returns a copy of the leaderboards configuration.
func (c *Config) GetLeaderboards() LeaderboardsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Leaderboards
}

// GetDiscord returns a copy of the Discord configuration.
func (c *Config) GetDiscord() DiscordConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Discord
}

// GetMQTT returns a copy of the MQTT configuration.
func (c *Config) GetMQTT() MQTTConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MQTT
}

// GetAPI returns a copy of the API configuration.
func (c *Config) GetAPI() APIConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	api := c.API
	api.AllowedOrigins = append([]string(nil), c.API.AllowedOrigins...)
	return api
}

// GetLogging returns a copy of the logging configuration.
func (c *Config) GetLogging() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// LobbyAddr returns the bind address for the lobby listener.
func (c *Config) LobbyAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return net.JoinHostPort(c.Server.BindAddress, strconv.Itoa(c.Server.LobbyPort))
}

// GameAddr returns the bind address for the game listener.
func (c *Config) GameAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return net.JoinHostPort(c.Server.BindAddress, strconv.Itoa(c.Server.GamePort))
}

// DatabasePath returns the path of the SQLite database file.
func (c *Config) DatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(c.Server.DataDir, "quadrelay.db")
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
