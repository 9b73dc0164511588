// Package scheduler implements background housekeeping for Quadrelay:
// periodic status snapshots and old log file cleanup.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/game"
	"github.com/quadrelay-project/quadrelay/internal/lobby"
)

const (
	statusInterval = 5 * time.Minute
	logRetention   = 30 * 24 * time.Hour
	logCleanupHour = 4
)

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	lobbySv  *lobby.Server
	gameSv   *game.Server
}

// NewScheduler creates a new task scheduler.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, lobbySv *lobby.Server, gameSv *game.Server) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		lobbySv:  lobbySv,
		gameSv:   gameSv,
	}
}

// Start begins running all scheduled tasks and blocks until the context
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	go s.runStatusLoop(ctx)
	go s.runLogCleanupLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runStatusLoop periodically emits a population snapshot.
func (s *Scheduler) runStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emitStatus(ctx)
		}
	}
}

func (s *Scheduler) emitStatus(ctx context.Context) {
	status := events.ServerStatusPayload{
		LobbyPlayers: s.lobbySv.PlayerCount(),
		GamePlayers:  s.gameSv.PlayerCount(),
		Matches:      s.gameSv.MatchCount(),
	}

	log.Debug().
		Int("lobby_players", status.LobbyPlayers).
		Int("game_players", status.GamePlayers).
		Int("matches", status.Matches).
		Msg("status snapshot")

	s.eventBus.Emit(ctx, events.Event{
		Type:    events.EventServerStatus,
		Source:  "scheduler",
		Payload: status,
	})
}

// runLogCleanupLoop deletes old log files once a day, early morning.
func (s *Scheduler) runLogCleanupLoop(ctx context.Context) {
	for {
		nextRun := nextCleanupTime()
		sleepDuration := time.Until(nextRun)
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		log.Debug().
			Time("next_run", nextRun).
			Msg("log cleanup scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepDuration):
			s.cleanupLogs()
		}
	}
}

// cleanupLogs removes rotated log files older than the retention window.
func (s *Scheduler) cleanupLogs() {
	logDir := s.cfg.GetLogging().Directory
	if logDir == "" {
		return
	}

	var (
		deletedCount int
		deletedSize  int64
	)

	err := filepath.Walk(logDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".log") {
			return nil
		}
		if time.Since(info.ModTime()) <= logRetention {
			return nil
		}

		if err := os.Remove(path); err == nil {
			deletedCount++
			deletedSize += info.Size()
			log.Debug().Str("file", info.Name()).Msg("deleted old log file")
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("log cleanup encountered errors")
	}

	if deletedCount > 0 {
		log.Info().
			Int("deleted_files", deletedCount).
			Str("freed_space", formatBytes(deletedSize)).
			Msg("log cleanup completed")
	}
}

// nextCleanupTime returns the next early-morning cleanup slot.
func nextCleanupTime() time.Time {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), logCleanupHour, 0, 0, 0, now.Location())
	if next.Before(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
