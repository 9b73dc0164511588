package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateAuth(&cfg.Auth, result)
	validateDiscord(&cfg.Discord, result)
	validateMQTT(&cfg.MQTT, result)
	validateAPI(&cfg.API, result)

	// Port conflict detection
	ports := map[int]string{
		cfg.Server.LobbyPort: "lobby",
		cfg.Server.GamePort:  "game",
	}
	want := 2
	if cfg.API.Enabled {
		ports[cfg.API.Port] = "api"
		want = 3
	}
	if len(ports) < want {
		result.AddError("server.ports", "port conflict detected: all ports must be unique")
	}

	return result
}

func validateServer(data *ServerConfig, result *ValidationResult) {
	if strings.TrimSpace(data.BindAddress) == "" {
		result.AddError("server.bind_address", "bind address is required")
	} else if net.ParseIP(data.BindAddress) == nil {
		result.AddError("server.bind_address",
			fmt.Sprintf("invalid bind address: %s", data.BindAddress))
	}

	validatePort(data.LobbyPort, "server.lobby_port", result)
	validatePort(data.GamePort, "server.game_port", result)

	if strings.TrimSpace(data.DataDir) == "" {
		result.AddError("server.data_dir", "data directory is required")
	}
}

func validateAuth(data *AuthConfig, result *ValidationResult) {
	if data.DisableAuth {
		result.AddWarning("auth.disable_auth",
			"authentication is disabled, any password is accepted for any member")
	}
}

func validateDiscord(data *DiscordConfig, result *ValidationResult) {
	if !data.Enabled {
		return
	}
	url := strings.TrimSpace(data.WebhookURL)
	if url == "" {
		result.AddError("discord.webhook_url", "webhook URL is required when Discord is enabled")
	} else if !strings.HasPrefix(url, "https://") {
		result.AddWarning("discord.webhook_url", "webhook URL does not use https")
	}
}

func validateMQTT(data *MQTTConfig, result *ValidationResult) {
	if !data.Enabled {
		return
	}
	if strings.TrimSpace(data.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if data.Port < 1 || data.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if data.UseTLS && strings.TrimSpace(data.CAFile) == "" {
		result.AddWarning("mqtt.ca_file", "no CA file set, system trust store will be used")
	}
}

func validateAPI(data *APIConfig, result *ValidationResult) {
	if !data.Enabled {
		return
	}
	validatePort(data.Port, "api.port", result)

	if data.TLSEnabled {
		if strings.TrimSpace(data.TLSCertFile) == "" {
			result.AddWarning("api.tls_cert_file",
				"no certificate file set, a self-signed certificate will be generated")
		}
		if strings.TrimSpace(data.TLSKeyFile) == "" {
			result.AddWarning("api.tls_key_file",
				"no key file set, a self-signed certificate will be generated")
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
