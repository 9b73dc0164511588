// Package api implements the REST admin API: health, population and
// leaderboard queries over the running lobby and game services.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/game"
	"github.com/quadrelay-project/quadrelay/internal/lobby"
	intnet "github.com/quadrelay-project/quadrelay/internal/network"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// Server is the REST API server.
type Server struct {
	cfg     *config.Config
	store   *db.Store
	lobbySv *lobby.Server
	gameSv  *game.Server

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, store *db.Store, lobbySv *lobby.Server, gameSv *game.Server) *Server {
	if cfg.GetLogging().Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:     cfg,
		store:   store,
		lobbySv: lobbySv,
		gameSv:  gameSv,
	}
}

// Start runs the API server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	apiCfg := s.cfg.GetAPI()
	addr := fmt.Sprintf(":%d", apiCfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	certFile, keyFile := apiCfg.TLSCertFile, apiCfg.TLSKeyFile
	if apiCfg.TLSEnabled {
		s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		if certFile == "" || keyFile == "" {
			dataDir := s.cfg.GetServer().DataDir
			certFile = filepath.Join(dataDir, "api-cert.pem")
			keyFile = filepath.Join(dataDir, "api-key.pem")
			if err := util.GenerateSelfSignedCert(certFile, keyFile); err != nil {
				return fmt.Errorf("failed to generate API certificate: %w", err)
			}
		}
	}

	// SO_REUSEADDR allows immediate rebinding after a restart.
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Bool("tls", apiCfg.TLSEnabled).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if apiCfg.TLSEnabled {
		err = s.httpServer.ServeTLS(ln, certFile, keyFile)
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.GetAPI().AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/lobby/stats", s.handleLobbyStats)
		v1.GET("/game/stats", s.handleGameStats)
		v1.GET("/matches/recent", s.handleRecentMatches)
		v1.GET("/ranking", s.handleRanking)
		v1.GET("/ratings", s.handleRatings)
		v1.GET("/system", s.handleSystem)
		v1.GET("/config", s.handleConfig)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
