// Package api provides the local HTTP surface UI callers (popup, options
// page, upload code) use to talk to the auth manager. The contract is a
// single message endpoint carrying a typed envelope; responses always have
// a success flag.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/recipeclip/agent/internal/authman"
	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/logging"
	"github.com/recipeclip/agent/internal/provider"
	log "github.com/sirupsen/logrus"
)

// Server is the local message API server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	auth   *authman.Manager

	cfgMu sync.RWMutex
	cfg   *config.Config
}

// NewServer creates and initializes the message API server.
func NewServer(cfg *config.Config, auth *authman.Manager) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(corsMiddleware())

	s := &Server{
		engine: engine,
		auth:   auth,
		cfg:    cfg,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	authorized := s.engine.Group("/v1", s.accessMiddleware())
	authorized.POST("/auth/message", s.handleAuthMessage)
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	log.Infof("message API listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// SetConfig swaps the configuration after a hot reload.
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Server) currentConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// handleAuthMessage dispatches one message envelope. Handled messages
// always answer with HTTP 200 and a success flag, matching message-port
// semantics; only malformed envelopes and unknown types get HTTP 400.
func (s *Server) handleAuthMessage(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid message: " + err.Error()})
		return
	}
	ctx := c.Request.Context()

	switch msg.Type {
	case MessageSignIn:
		result, err := s.auth.SignIn(ctx, msg.Provider, msg.Credentials)
		if err != nil {
			c.JSON(http.StatusOK, failure(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"user": provider.UserProfile{
				UserID:      result.UserID,
				Email:       result.Email,
				DisplayName: result.DisplayName,
				PhotoURL:    result.PhotoURL,
			},
			"provider": msg.Provider,
		})

	case MessageCheckAuthStatus:
		status, err := s.auth.CheckAuthStatus(ctx)
		if err != nil {
			c.JSON(http.StatusOK, failure(err))
			return
		}
		reply := gin.H{"success": true, "authenticated": status.Authenticated}
		if status.Authenticated {
			reply["user"] = status.Profile
			reply["provider"] = status.Provider
		}
		if status.Error != "" {
			reply["error"] = status.Error
		}
		c.JSON(http.StatusOK, reply)

	case MessageSignOut:
		if err := s.auth.SignOut(ctx); err != nil {
			c.JSON(http.StatusOK, failure(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})

	case MessageGetIDToken:
		token, err := s.auth.IDToken(ctx, msg.ForceRefresh)
		if err != nil {
			c.JSON(http.StatusOK, failure(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token})

	case MessageGetCurrentUser:
		profile, err := s.auth.CurrentUser(ctx)
		if err != nil {
			c.JSON(http.StatusOK, failure(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})

	case MessageListProviders:
		c.JSON(http.StatusOK, gin.H{"success": true, "providers": s.auth.Providers()})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

// failure shapes an error reply. UI callers get a short human-readable
// reason, never a stack trace.
func failure(err error) gin.H {
	return gin.H{"success": false, "error": err.Error()}
}
