// Package api provides the REST surface described in spec.md §6: event
// ingest, batch ingest, the module response callback, the active-commands
// listing, and a point-in-time metrics endpoint. Grounded on the teacher's
// pkg/api/server.go: an Echo v5 server built once via NewServer, routes
// registered in setupRoutes, dependencies wired through Set* methods rather
// than constructor params once the list grows past a handful.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/waddlebot/core/pkg/authn"
	"github.com/waddlebot/core/pkg/healthz"
	"github.com/waddlebot/core/pkg/router"
	"github.com/waddlebot/core/pkg/session"
	"github.com/waddlebot/core/pkg/storage"
	"github.com/waddlebot/core/pkg/version"
)

// CommandLister lists active commands for GET /api/v1/router/commands,
// satisfied by *storage.CommandRepo.
type CommandLister interface {
	ListActive(ctx context.Context) ([]storage.Command, error)
}

// SessionLookup resolves the session a response callback's session_id
// belongs to, satisfied by *session.Manager.
type SessionLookup interface {
	GetByID(ctx context.Context, sessionID string) (session.Session, error)
}

// ActionPusher schedules the chat-reply send spec.md §4.2 step 9 requires
// for an async module response, the same contract the router uses for its
// synchronous path.
type ActionPusher interface {
	PushChatReply(ctx context.Context, entityID, userID, message string) error
}

// Server is the router's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	router   *router.Router
	commands CommandLister
	verifier *authn.TokenVerifier
	checker  *healthz.Checker

	sessions SessionLookup
	actions  ActionPusher

	metrics *metricsCollector
}

// SetResponseCorrelation wires the collaborators postResponseHandler needs
// to correlate an async module response against its session and schedule a
// chat reply (spec.md §4.2 step 9). Left unset, the server still
// acknowledges callbacks but cannot correlate or schedule.
func (s *Server) SetResponseCorrelation(sessions SessionLookup, actions ActionPusher) {
	s.sessions = sessions
	s.actions = actions
}

// NewServer builds a Server with every route registered. verifier may be
// nil, in which case the REST boundary trusts every caller — useful for
// tests and for deployments that terminate auth at a reverse proxy.
func NewServer(r *router.Router, commands CommandLister, verifier *authn.TokenVerifier, checker *healthz.Checker) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{
		echo:     e,
		router:   r,
		commands: commands,
		verifier: verifier,
		checker:  checker,
		metrics:  newMetricsCollector(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/healthz", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version.Full()})
	})
	if s.checker != nil {
		s.echo.GET("/readyz", func(c *echo.Context) error {
			report := s.checker.Run(c.Request().Context())
			status := http.StatusOK
			if report.Status == healthz.StatusDown {
				status = http.StatusServiceUnavailable
			}
			return c.JSON(status, report)
		})
	}

	v1 := s.echo.Group("/api/v1/router", s.authMiddleware())
	v1.POST("/events", s.postEventHandler)
	v1.POST("/events/batch", s.postBatchHandler)
	v1.POST("/responses", s.postResponseHandler)
	v1.GET("/commands", s.listCommandsHandler)
	v1.GET("/metrics", s.metricsHandler)
}

// Start runs the server on addr until the context is cancelled, then shuts
// down gracefully within 10s.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// authMiddleware verifies the service-to-service token on every router
// route, per spec.md §4.6 ("a static shared API key ... or a short-lived
// signed token"). A nil verifier disables this check.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if s.verifier == nil {
				return next(c)
			}
			tok := extractBearerToken(c.Request())
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			if _, err := s.verifier.Verify(tok); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			return next(c)
		}
	}
}

func extractBearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
