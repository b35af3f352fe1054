package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/inrsta/dait-meetup-langfuse/internal/chat"
	"github.com/inrsta/dait-meetup-langfuse/internal/config"
	"github.com/inrsta/dait-meetup-langfuse/internal/providers"
	"github.com/inrsta/dait-meetup-langfuse/internal/session"
	"github.com/inrsta/dait-meetup-langfuse/internal/trace"
)

// Server represents the chat API server
type Server struct {
	echo          *echo.Echo
	port          int
	sessions      *session.Manager
	corrector     *chat.Corrector
	orchestrators map[string]*chat.Orchestrator
	tokens        *TokenService
}

// NewServer creates a new API server from application configuration. One
// orchestrator is built per configured provider; the Langfuse sink is
// shared by all of them, an in-memory sink stands in when disabled.
func NewServer(cfg *config.Config) (*Server, error) {
	var sink trace.Sink
	if cfg.Langfuse.Enabled {
		sink = trace.NewLangfuseSink(cfg.Langfuse)
	} else {
		sink = trace.NewMemorySink()
	}
	recorder := trace.NewRecorder(sink)

	orchestrators := make(map[string]*chat.Orchestrator)
	for name, pc := range cfg.Providers {
		client, err := providers.NewClient(context.Background(), providers.ClientOptions{
			Provider:     providers.Provider(name),
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			Instructions: pc.Instructions,
			ModelConfig: providers.ModelConfig{
				Model:       pc.Model,
				Temperature: pc.Temperature,
				MaxTokens:   pc.MaxTokens,
				TopP:        pc.TopP,
			},
			Passthrough:       pc.Options,
			RequestsPerSecond: pc.RequestsPerSecond,
		})
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Skipping provider, client creation failed")
			continue
		}
		orchestrators[name] = chat.NewOrchestrator(client, recorder, pc.Options)
	}

	if len(orchestrators) == 0 {
		return nil, fmt.Errorf("no usable providers configured")
	}

	jwtSecret := cfg.Server.JWTSecret
	if jwtSecret == "" {
		return nil, fmt.Errorf("server jwt_secret is required")
	}

	server := &Server{
		port:          cfg.Server.Port,
		sessions:      session.NewManager(),
		corrector:     chat.NewCorrector(recorder),
		orchestrators: orchestrators,
		tokens:        NewTokenService(jwtSecret),
	}
	server.setupEcho()

	return server, nil
}

// newTestServer wires a server directly from pre-built collaborators.
func newTestServer(orchestrators map[string]*chat.Orchestrator, corrector *chat.Corrector, jwtSecret string) *Server {
	server := &Server{
		port:          0,
		sessions:      session.NewManager(),
		corrector:     corrector,
		orchestrators: orchestrators,
		tokens:        NewTokenService(jwtSecret),
	}
	server.setupEcho()
	return server
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s.echo = e
	s.setupRoutes()
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// Chat page
	s.echo.GET("/", s.chatPage)

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	v1.POST("/sessions", s.createSession)
	v1.GET("/providers", s.listProviders)

	authed := v1.Group("/chat", RequireSession(s.tokens))
	authed.POST("/:provider/messages", s.postMessage)
	authed.GET("/:provider/messages", s.getTranscript)
	authed.POST("/:provider/messages/:index/feedback", s.postFeedback)
}

// providerNames returns configured provider names in stable order.
func (s *Server) providerNames() []string {
	names := make([]string, 0, len(s.orchestrators))
	for name := range s.orchestrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
