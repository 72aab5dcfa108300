package server

import (
	"fmt"
	"net/http"
	"strings"

	"trading-backbone/src/auth"
	"trading-backbone/src/helpers"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
	"trading-backbone/src/registry"
	"trading-backbone/src/sessions"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

const ctxSubject = "subject"

type Server struct {
	Config      *models.MConfig
	Logger      *logger.Logger
	engine      *gin.Engine
	coordinator *auth.Coordinator
	cache       *sessions.Cache
	registry    *registry.Registry
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, coordinator *auth.Coordinator, cache *sessions.Cache, reg *registry.Registry, log *logger.Logger) *Server {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:      cfg,
		Logger:      log,
		engine:      gin.Default(),
		coordinator: coordinator,
		cache:       cache,
		registry:    reg,
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Refresh-Token, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-New-Access-Token, X-Token-Refreshed, X-IIFL-Sessions-Refreshed")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Public endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/ws", s.handleWebSocket)

	// Authenticated REST endpoints
	api := s.engine.Group("/api", s.authMiddleware())
	api.POST("/auth/refresh", s.postRefresh)
	api.POST("/auth/logout", s.postLogout)
	api.GET("/market/quote", s.getQuote)
	api.GET("/market/search", s.getSearch)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// Auth middleware
// -----------------------------------------------------------------------------

// authMiddleware resolves the subject from the bearer token, transparently
// refreshing it from X-Refresh-Token when expired. Refresh outcomes ride on
// response headers, set before the handler runs so they survive any body the
// handler writes:
//
//	X-New-Access-Token       replacement bearer token
//	X-Token-Refreshed        "true" when a new token was minted
//	X-IIFL-Sessions-Refreshed "true" when gateway sessions were recycled too
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := bearerToken(c.GetHeader("Authorization"))
		if accessToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}

		refreshToken := c.GetHeader("X-Refresh-Token")

		result, err := s.coordinator.Authenticate(c.Request.Context(), accessToken, refreshToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token"})
			return
		}

		if result.NewAccessToken != "" {
			c.Header("X-New-Access-Token", result.NewAccessToken)
			c.Header("X-Token-Refreshed", "true")
			if result.SessionsRefreshed {
				c.Header("X-IIFL-Sessions-Refreshed", "true")
			}
		}

		c.Set(ctxSubject, result.Subject)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	// Accept both "Bearer <token>" and a bare token.
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return header
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":      "ok",
		"service":     s.Config.Name,
		"connections": s.registry.ConnectionCount(),
		"symbols":     len(s.registry.SubscribedSymbols()),
	})
}

// -----------------------------------------------------------------------------

// postRefresh exists for clients that want an explicit refresh round-trip;
// the middleware already did the work, the body just mirrors the headers.
func (s *Server) postRefresh(c *gin.Context) {
	c.JSON(200, gin.H{
		"subject":            c.GetString(ctxSubject),
		"access_token":       c.Writer.Header().Get("X-New-Access-Token"),
		"token_refreshed":    c.Writer.Header().Get("X-Token-Refreshed") == "true",
		"sessions_refreshed": c.Writer.Header().Get("X-IIFL-Sessions-Refreshed") == "true",
	})
}

// -----------------------------------------------------------------------------

func (s *Server) postLogout(c *gin.Context) {
	subject := c.GetString(ctxSubject)
	s.cache.InvalidateAll(c.Request.Context(), subject)
	c.JSON(200, gin.H{"detail": "Logged out"})
}

// -----------------------------------------------------------------------------

func (s *Server) getQuote(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "symbol is required"})
		return
	}

	subject := c.GetString(ctxSubject)
	session, err := s.cache.GetOrCreate(c.Request.Context(), subject, models.ChannelMarketData)
	if err != nil {
		s.abortGatewayError(c, err)
		return
	}

	matches, err := session.Client.Search(c.Request.Context(), symbol)
	if err != nil {
		s.abortGatewayError(c, err)
		return
	}
	if len(matches) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("No instrument found for %s", symbol)})
		return
	}

	inst := matches[0]
	for _, m := range matches {
		if m.ExchangeSegment == 1 && m.Series == "EQ" {
			inst = m
			break
		}
	}
	inst.StockName = symbol

	ticks, err := session.Client.Quotes(c.Request.Context(), []models.MInstrument{inst})
	if err != nil {
		s.abortGatewayError(c, err)
		return
	}
	if len(ticks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("No quote available for %s", symbol)})
		return
	}

	tick := ticks[0]
	tick.StockName = symbol
	c.JSON(200, tick)
}

// -----------------------------------------------------------------------------

func (s *Server) getSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "q is required"})
		return
	}

	subject := c.GetString(ctxSubject)
	session, err := s.cache.GetOrCreate(c.Request.Context(), subject, models.ChannelMarketData)
	if err != nil {
		s.abortGatewayError(c, err)
		return
	}

	matches, err := session.Client.Search(c.Request.Context(), query)
	if err != nil {
		s.abortGatewayError(c, err)
		return
	}

	c.JSON(200, gin.H{"results": matches})
}

// -----------------------------------------------------------------------------

// abortGatewayError maps upstream failures without leaking gateway internals:
// auth problems are the caller's 401, everything else is a 502.
func (s *Server) abortGatewayError(c *gin.Context, err error) {
	if helpers.IsAuthFailure(err) {
		s.Logger.Warning("Gateway auth failure for %s: %v", c.GetString(ctxSubject), err)
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Brokerage session unavailable"})
		return
	}

	s.Logger.Error("Gateway request failed for %s: %v", c.GetString(ctxSubject), err)
	c.JSON(http.StatusBadGateway, gin.H{"detail": "Brokerage gateway request failed"})
}
