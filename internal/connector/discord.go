// Package connector pushes server events to external services: Discord
// webhook notifications for lobby and match activity.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/events"
)

const (
	colorGreen  = 0x00ff00
	colorRed    = 0xff0000
	colorOrange = 0xffaa00
	colorGray   = 0x95a5a6
)

// DiscordConnector sends lobby and match notifications to a Discord
// webhook. It subscribes to the event bus and posts embeds for the
// event classes enabled in the configuration.
type DiscordConnector struct {
	cfg    *config.Config
	bus    *events.EventBus
	client *http.Client
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// NewDiscordConnector creates the connector and subscribes it to the
// event bus.
func NewDiscordConnector(cfg *config.Config, bus *events.EventBus) *DiscordConnector {
	dc := &DiscordConnector{
		cfg:    cfg,
		bus:    bus,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	bus.Subscribe(events.EventLobbyJoined, "discord.lobby_joined", dc.onLobbyJoined)
	bus.Subscribe(events.EventLobbyLeft, "discord.lobby_left", dc.onLobbyLeft)
	bus.Subscribe(events.EventCommentSet, "discord.comment", dc.onCommentSet)
	bus.Subscribe(events.EventLobbyChat, "discord.chat", dc.onLobbyChat)
	bus.Subscribe(events.EventMatchFinished, "discord.match", dc.onMatchFinished)

	return dc
}

func (dc *DiscordConnector) onLobbyJoined(ctx context.Context, event events.Event) error {
	discordCfg := dc.cfg.GetDiscord()
	if !discordCfg.Enabled || !discordCfg.NotifyOnJoin {
		return nil
	}
	payload, ok := event.Payload.(events.LobbyJoinedPayload)
	if !ok {
		return nil
	}

	return dc.sendWebhook(ctx, embed{
		Title:       fmt.Sprintf("%s joined the lobby!", payload.Username),
		Description: lobbyPopulation(payload.PlayerCount),
		Color:       colorGreen,
	})
}

func (dc *DiscordConnector) onLobbyLeft(ctx context.Context, event events.Event) error {
	discordCfg := dc.cfg.GetDiscord()
	if !discordCfg.Enabled || !discordCfg.NotifyOnJoin {
		return nil
	}
	payload, ok := event.Payload.(events.LobbyLeftPayload)
	if !ok {
		return nil
	}

	return dc.sendWebhook(ctx, embed{
		Title:       fmt.Sprintf("%s left the lobby!", payload.Username),
		Description: lobbyPopulation(payload.PlayerCount),
		Color:       colorRed,
	})
}

func (dc *DiscordConnector) onCommentSet(ctx context.Context, event events.Event) error {
	discordCfg := dc.cfg.GetDiscord()
	if !discordCfg.Enabled || !discordCfg.NotifyOnComment {
		return nil
	}
	payload, ok := event.Payload.(events.CommentSetPayload)
	if !ok {
		return nil
	}

	return dc.sendWebhook(ctx, embed{
		Title:       fmt.Sprintf("%s set a new status", payload.Username),
		Description: payload.Comment,
		Color:       colorOrange,
	})
}

func (dc *DiscordConnector) onLobbyChat(ctx context.Context, event events.Event) error {
	discordCfg := dc.cfg.GetDiscord()
	if !discordCfg.Enabled || !discordCfg.NotifyOnChat {
		return nil
	}
	payload, ok := event.Payload.(events.LobbyChatPayload)
	if !ok {
		return nil
	}

	return dc.sendWebhook(ctx, embed{
		Title:       payload.Username,
		Description: payload.Text,
		Color:       colorGray,
	})
}

func (dc *DiscordConnector) onMatchFinished(ctx context.Context, event events.Event) error {
	discordCfg := dc.cfg.GetDiscord()
	if !discordCfg.Enabled || !discordCfg.NotifyOnMatch {
		return nil
	}
	payload, ok := event.Payload.(events.MatchFinishedPayload)
	if !ok {
		return nil
	}

	if payload.Void {
		return dc.sendWebhook(ctx, embed{
			Title: fmt.Sprintf("%s vs %s was declared void", payload.Winner, payload.Loser),
			Color: colorGray,
		})
	}

	duration := payload.Finished.Sub(payload.Started).Round(time.Second)
	return dc.sendWebhook(ctx, embed{
		Title: fmt.Sprintf("%s beat %s", payload.Winner, payload.Loser),
		Description: fmt.Sprintf("%d-%d after %d moves in %s",
			payload.WinnerScore, payload.LoserScore, payload.Moves, duration),
		Color: colorGreen,
	})
}

func lobbyPopulation(count int) string {
	if count == 1 {
		return "There is 1 player waiting in the lobby."
	}
	return fmt.Sprintf("There are %d players waiting in the lobby.", count)
}

func (dc *DiscordConnector) sendWebhook(ctx context.Context, e embed) error {
	webhookURL := dc.cfg.GetDiscord().WebhookURL
	if webhookURL == "" {
		return nil
	}

	e.Timestamp = time.Now().Format(time.RFC3339)
	body, err := json.Marshal(map[string]interface{}{"embeds": []embed{e}})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	log.Debug().Str("title", e.Title).Msg("Discord webhook sent")
	return nil
}
