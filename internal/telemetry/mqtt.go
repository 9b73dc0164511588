// Package telemetry publishes server activity to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// MQTT topics
const (
	TopicLobbyActivity = "quadrelay/lobby/activity"
	TopicLobbyChat     = "quadrelay/lobby/chat"
	TopicMatchResults  = "quadrelay/game/results"
	TopicServerStatus  = "quadrelay/server/status"
)

// MQTTHandler manages the MQTT connection and publishes telemetry for
// lobby activity and match results.
type MQTTHandler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus) (*MQTTHandler, error) {
	mqttCfg := cfg.GetMQTT()
	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname": sysInfo.Hostname,
		"platform": sysInfo.Platform,
	}

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: metadata,
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("quadrelay-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		if mqttCfg.CAFile != "" {
			caPEM, err := os.ReadFile(mqttCfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no certificates found in MQTT CA file")
			}
			tlsConfig.RootCAs = pool
		}

		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

// Start connects to the MQTT broker and publishes events until the
// context is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	mqttCfg := h.cfg.GetMQTT()
	log.Info().
		Str("broker", mqttCfg.BrokerURL).
		Int("port", mqttCfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.publishShutdown()
	h.unsubscribeEvents()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.Subscribe(events.EventLobbyJoined, "mqtt.lobbyJoined", h.onLobbyJoined)
	h.eventBus.Subscribe(events.EventLobbyLeft, "mqtt.lobbyLeft", h.onLobbyLeft)
	h.eventBus.Subscribe(events.EventLobbyChat, "mqtt.lobbyChat", h.onLobbyChat)
	h.eventBus.Subscribe(events.EventChallenge, "mqtt.challenge", h.onChallenge)
	h.eventBus.Subscribe(events.EventMatchStarted, "mqtt.matchStarted", h.onMatchStarted)
	h.eventBus.Subscribe(events.EventMatchFinished, "mqtt.matchFinished", h.onMatchFinished)
	h.eventBus.Subscribe(events.EventServerStatus, "mqtt.serverStatus", h.onServerStatus)
}

func (h *MQTTHandler) unsubscribeEvents() {
	h.eventBus.Unsubscribe(events.EventLobbyJoined, "mqtt.lobbyJoined")
	h.eventBus.Unsubscribe(events.EventLobbyLeft, "mqtt.lobbyLeft")
	h.eventBus.Unsubscribe(events.EventLobbyChat, "mqtt.lobbyChat")
	h.eventBus.Unsubscribe(events.EventChallenge, "mqtt.challenge")
	h.eventBus.Unsubscribe(events.EventMatchStarted, "mqtt.matchStarted")
	h.eventBus.Unsubscribe(events.EventMatchFinished, "mqtt.matchFinished")
	h.eventBus.Unsubscribe(events.EventServerStatus, "mqtt.serverStatus")
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	msg := h.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})

	for k, v := range h.metadata {
		msg[k] = v
	}

	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

// Event handlers

func (h *MQTTHandler) onLobbyJoined(ctx context.Context, event events.Event) error {
	h.publish(TopicLobbyActivity, map[string]interface{}{
		"event":   "joined",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onLobbyLeft(ctx context.Context, event events.Event) error {
	h.publish(TopicLobbyActivity, map[string]interface{}{
		"event":   "left",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onLobbyChat(ctx context.Context, event events.Event) error {
	h.publish(TopicLobbyChat, event.Payload)
	return nil
}

func (h *MQTTHandler) onChallenge(ctx context.Context, event events.Event) error {
	h.publish(TopicLobbyActivity, map[string]interface{}{
		"event":   "challenge",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onMatchStarted(ctx context.Context, event events.Event) error {
	h.publish(TopicMatchResults, map[string]interface{}{
		"event":   "started",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onMatchFinished(ctx context.Context, event events.Event) error {
	h.publish(TopicMatchResults, map[string]interface{}{
		"event":   "finished",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onServerStatus(ctx context.Context, event events.Event) error {
	h.publish(TopicServerStatus, event.Payload)
	return nil
}

// publishShutdown announces that the server is going down.
func (h *MQTTHandler) publishShutdown() {
	h.publish(TopicServerStatus, map[string]interface{}{
		"event": "shutdown",
	})
}
