package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/game"
	"github.com/quadrelay-project/quadrelay/internal/lobby"
)

func newTestRouter(t *testing.T) (*gin.Engine, *db.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	lobbySv := lobby.NewServer(cfg, store, nil)
	gameSv := game.NewServer(cfg, store, nil)

	s := NewServer(cfg, store, lobbySv, gameSv)
	return s.buildRouter(), store
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := get(t, router, "/api/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body)
}

func TestLobbyStatsEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := get(t, router, "/api/v1/lobby/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["player_count"])
	assert.Empty(t, body["players"])
}

func TestGameStatsEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := get(t, router, "/api/v1/game/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["player_count"])
	assert.EqualValues(t, 0, body["match_count"])
}

func TestRecentMatchesListsReports(t *testing.T) {
	router, store := newTestRouter(t)

	ctx := context.Background()
	alice, err := store.CreateMember(ctx, "alice", []byte("hash"))
	require.NoError(t, err)
	bob, err := store.CreateMember(ctx, "bob", []byte("hash"))
	require.NoError(t, err)

	require.NoError(t, store.AddMatchReport(ctx, &db.MatchReport{
		WinnerID:         alice.ID,
		LoserID:          bob.ID,
		WinnerPiecesLeft: 6,
		LoserPiecesLeft:  1,
		MoveCounter:      33,
		Ranked:           true,
	}))

	w, body := get(t, router, "/api/v1/matches/recent")
	assert.Equal(t, http.StatusOK, w.Code)

	matches, ok := body["matches"].([]interface{})
	require.True(t, ok)
	require.Len(t, matches, 1)
	m := matches[0].(map[string]interface{})
	assert.Equal(t, "alice", m["winner"])
	assert.Equal(t, "bob", m["loser"])
	assert.EqualValues(t, 6, m["winner_score"])
}

func TestRankingRejectsBadMonth(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := get(t, router, "/api/v1/ranking?year=2024&month=13")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRankingDefaultsToCurrentMonth(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := get(t, router, "/api/v1/ranking")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body["year"])
	assert.NotNil(t, body["month"])
}

func TestConfigOmitsSecrets(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := get(t, router, "/api/v1/config")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "server")
	assert.Contains(t, body, "auth")
	assert.NotContains(t, body, "discord")
	assert.NotContains(t, body, "mqtt")
}

func TestUnknownRouteReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := get(t, router, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "endpoint not found", body["error"])
}
