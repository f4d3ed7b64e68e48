package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/assistant"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/config"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/orchestrator"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/telemetry"
)

const (
	subjectKey    = "subject"
	subjectHeader = "X-Subject"
)

type App struct {
	cfg       config.Config
	service   *assistant.Service
	analytics assistant.Analytics
	insights  *insight.Generator
	monitor   *orchestrator.NetworkMonitor
	gatherer  prometheus.Gatherer
	metrics   *telemetry.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

type Option func(*App)

// WithMonitor enables the manual connectivity override endpoint.
func WithMonitor(m *orchestrator.NetworkMonitor) Option {
	return func(a *App) { a.monitor = m }
}

// WithGatherer exposes the collectors of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

func New(cfg config.Config, service *assistant.Service, analytics assistant.Analytics, generator *insight.Generator, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		service:   service,
		analytics: analytics,
		insights:  generator,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(a.requestLogger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", subjectHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	if a.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.POST("/sessions", a.startSession)
	api.DELETE("/sessions/:session_id", a.endSession)
	api.POST("/assistant/query", a.assistantQuery)
	api.GET("/metrics/:kind/trend", a.metricTrend)
	api.GET("/metrics/:kind/compare", a.metricCompare)
	api.GET("/metrics/:kind/summary", a.metricSummary)
	api.GET("/insights", a.listInsights)
	api.DELETE("/cache", a.clearCache)
	api.POST("/network", a.setNetwork)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "health-query-api",
		"online":  a.monitor.Online(),
	})
}

func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		a.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	}
}

// authMiddleware binds every request to a subject. With a JWT secret
// configured the subject is the token's sub claim; otherwise it comes from the
// X-Subject header or the configured default.
func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.cfg.AuthEnabled() {
			subject := strings.TrimSpace(c.GetHeader(subjectHeader))
			if subject == "" {
				subject = a.cfg.DefaultSubject
			}
			c.Set(subjectKey, subject)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		c.Set(subjectKey, sub)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func subjectFromContext(c *gin.Context) string {
	return c.GetString(subjectKey)
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
