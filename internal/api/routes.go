package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quadrelay-project/quadrelay/internal/protocol"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// handleHealth answers liveness probes.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{})
}

// handleLobbyStats returns the lobby population and roster.
func (s *Server) handleLobbyStats(c *gin.Context) {
	players := make([]gin.H, 0, protocol.LobbySlots)
	for idx, p := range s.lobbySv.Players() {
		if p == nil {
			continue
		}
		players = append(players, gin.H{
			"slot":     idx,
			"username": p.Username,
			"comment":  p.Comment,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"player_count": s.lobbySv.PlayerCount(),
		"players":      players,
	})
}

// handleGameStats returns the game service population.
func (s *Server) handleGameStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"player_count": s.gameSv.PlayerCount(),
		"match_count":  s.gameSv.MatchCount(),
	})
}

// handleRecentMatches returns the latest finished matches.
func (s *Server) handleRecentMatches(c *gin.Context) {
	matches, err := s.store.RecentMatches(c.Request.Context(), 15)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	view := make([]gin.H, 0, len(matches))
	for _, m := range matches {
		view = append(view, gin.H{
			"winner":       m.Winner,
			"loser":        m.Loser,
			"winner_score": m.WinnerScore,
			"loser_score":  m.LoserScore,
			"moves":        m.Moves,
			"started_at":   m.Started.Format(time.RFC3339),
			"finished_at":  m.Finished.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"matches": view})
}

// handleRanking returns the leaderboard for a month, defaulting to the
// current one.
func (s *Server) handleRanking(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}

	lb := s.cfg.GetLeaderboards()
	rows, err := s.store.Ranking(c.Request.Context(), year, month, lb.RankedOnly, lb.IncludeVoid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	view := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		view = append(view, gin.H{
			"username": r.Username,
			"wins":     r.Wins,
			"games":    r.Games,
		})
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "month": month, "ranking": view})
}

// handleRatings returns the materialized monthly rating aggregates.
func (s *Server) handleRatings(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}

	ratings, err := s.store.MonthlyRatings(c.Request.Context(), year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	view := make([]gin.H, 0, len(ratings))
	for _, r := range ratings {
		view = append(view, gin.H{
			"user_id": r.UserID,
			"wins":    r.Wins,
			"games":   r.Games,
			"version": r.Version,
		})
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "month": month, "ratings": view})
}

// handleSystem returns host resource usage.
func (s *Server) handleSystem(c *gin.Context) {
	info := util.GetSystemInfo()

	resp := gin.H{"system": info}
	if cpu, err := util.GetCPUUsage(); err == nil {
		resp["cpu_percent"] = cpu
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory"] = mem
	}
	if disk, err := util.GetDiskUsage(s.cfg.GetServer().DataDir); err == nil {
		resp["disk"] = disk
	}
	c.JSON(http.StatusOK, resp)
}

// handleConfig returns the non-sensitive parts of the running config.
func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server":       s.cfg.GetServer(),
		"auth":         s.cfg.GetAuth(),
		"lobby":        s.cfg.GetLobby(),
		"leaderboards": s.cfg.GetLeaderboards(),
	})
}

func yearMonthParams(c *gin.Context) (int, int, bool) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	var err error
	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return 0, 0, false
		}
	}
	if v := c.Query("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return 0, 0, false
		}
	}
	return year, month, true
}
