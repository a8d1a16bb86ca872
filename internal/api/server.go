// Package api is the HTTP read surface over the same repositories the
// connection layer writes through: conversation lists, paginated message
// history, an admin summary, health and metrics.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatline/internal/auth"
	"chatline/internal/presence"
	"chatline/internal/ws"
	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

const identityKey = "identity"

// Storage is what the API needs from the store beyond the repositories.
type Storage interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (map[string]int, error)
}

// Deps bundles the server's collaborators.
type Deps struct {
	Auth     *auth.Authenticator
	Users    interfaces.UserRepository
	Messages interfaces.MessageRepository
	Registry *presence.Registry
	Rooms    *ws.Rooms
	Storage  Storage

	Metrics     http.Handler
	WebSocket   http.HandlerFunc
	CORSOrigins []string
	PageSize    int
	Log         zerolog.Logger
}

// Server owns the gin engine and its routes.
type Server struct {
	deps   Deps
	engine *gin.Engine
	log    zerolog.Logger
}

// NewServer builds the engine with middleware and routes. The WebSocket
// endpoint is mounted here too so the whole service listens on one port.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps: deps,
		log:  deps.Log.With().Str("component", "api").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	corsCfg := cors.DefaultConfig()
	if len(deps.CORSOrigins) == 1 && deps.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = deps.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	engine.Use(cors.New(corsCfg))

	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(deps.Metrics))
	engine.GET("/ws", gin.WrapF(deps.WebSocket))

	authed := engine.Group("/api", s.requireAuth)
	authed.GET("/conversations", s.listConversations)
	authed.GET("/messages/:conversationId", s.listMessages)
	authed.GET("/admin", s.adminSummary)

	s.engine = engine
	return s
}

// Handler exposes the engine as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

// requireAuth runs the same admission check as the connection layer: the
// token cookie (or explicit credential) must verify and resolve.
func (s *Server) requireAuth(c *gin.Context) {
	identity, err := s.deps.Auth.Admit(c.Request.Context(), c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(identityKey, *identity)
	c.Next()
}

func identityFrom(c *gin.Context) types.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(types.Identity)
	return identity
}

func (s *Server) health(c *gin.Context) {
	if err := s.deps.Storage.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listConversations(c *gin.Context) {
	identity := identityFrom(c)
	summaries, err := s.deps.Messages.ConversationSummaries(c.Request.Context(), identity.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user", identity.ID).Msg("conversation list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

func (s *Server) listMessages(c *gin.Context) {
	identity := identityFrom(c)
	conversationID := c.Param("conversationId")

	if !types.ConversationHas(conversationID, identity.ID) && identity.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", s.deps.PageSize)

	messages, err := s.deps.Messages.FindByConversation(c.Request.Context(), conversationID, page, limit)
	if err != nil {
		s.log.Error().Err(err).Str("conversation", conversationID).Msg("message page failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	total, err := s.deps.Messages.CountByConversation(c.Request.Context(), conversationID)
	if err != nil {
		s.log.Error().Err(err).Str("conversation", conversationID).Msg("message count failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

func (s *Server) adminSummary(c *gin.Context) {
	identity := identityFrom(c)
	if identity.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	storageStats, err := s.deps.Storage.Stats(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("storage stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"presence": s.deps.Registry.Stats(),
		"rooms":    s.deps.Rooms.Stats(),
		"storage":  storageStats,
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
