// Package chatroom provides the main service registration for the
// long-polling chat application. It wires the HTTP resource endpoints
// to the command router, serves the static browser client, and exposes
// health and metrics endpoints.
package chatroom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatkit/chatroom/internal/command"
	"github.com/chatkit/chatroom/internal/config"
	"github.com/chatkit/chatroom/internal/constants"
	"github.com/chatkit/chatroom/internal/event"
	"github.com/chatkit/chatroom/internal/history"
	"github.com/chatkit/chatroom/internal/httperrors"
	"github.com/chatkit/chatroom/internal/metrics"
	"github.com/chatkit/chatroom/internal/ratelimit"
	"github.com/chatkit/chatroom/internal/room"
	"github.com/chatkit/chatroom/internal/util"
)

// Service holds the running chat service: the room, the command
// router, and the background limiters. Obtain one via Register and
// stop it with Shutdown.
type Service struct {
	room          *room.Room
	cmd           *command.Router
	loginLimiter  *ratelimit.RequestLimiter
	publicLimiter *ratelimit.RequestLimiter
	pollLimiter   *ratelimit.PollLimiter
	logger        *slog.Logger
}

// Register registers the chatroom service routes on the gin engine and
// returns the running service.
func Register(r *gin.Engine, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.With("service", "chatroom")
	log.Info("Initializing chatroom service",
		"inactivity_window", cfg.Chat.InactivityWindow,
		"history_limit", cfg.Chat.HistoryLimit)

	msgLog := history.NewLog(cfg.Chat.HistoryLimit)
	rm := room.New(cfg.Chat.InactivityWindow, msgLog, log)
	cmd := command.NewRouter(rm, msgLog, log)

	loginLimiter := ratelimit.NewRequestLimiter(cfg.Server.RateWindow, cfg.Server.LoginRateLimit)
	publicLimiter := ratelimit.NewRequestLimiter(time.Minute, cfg.Server.PublicEndpointRate)
	pollLimiter := ratelimit.NewPollLimiter(cfg.Server.MaxPollsPerIP)

	loginLimiter.StartCleanup()
	publicLimiter.StartCleanup()

	svc := &Service{
		room:          rm,
		cmd:           cmd,
		loginLimiter:  loginLimiter,
		publicLimiter: publicLimiter,
		pollLimiter:   pollLimiter,
		logger:        log,
	}

	// Configure trusted proxies so ClientIP() only honors
	// X-Forwarded-For from known networks.
	if cfg.Server.TrustedProxies != "" {
		proxies := splitAndTrim(cfg.Server.TrustedProxies)
		if err := r.SetTrustedProxies(proxies); err != nil {
			log.Warn("Failed to set trusted proxies", "error", err)
		}
	}

	// CORS is enabled only when origins are configured.
	if cfg.Server.CORSAllowedOrigins != "" {
		corsConfig := cors.Config{
			AllowOrigins:     splitAndTrim(cfg.Server.CORSAllowedOrigins),
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		r.Use(cors.New(corsConfig))
		log.Info("CORS middleware configured", "allowed_origins", corsConfig.AllowOrigins)
	}

	r.Use(traceMiddleware())
	r.Use(securityHeadersMiddleware())
	r.Use(metricsMiddleware())

	// Command resources. Paths and verbs are the contract the browser
	// client speaks: POST login/newmessage/polling, GET history/usersonline.
	rs := r.Group(constants.ResourcePrefix)
	{
		rs.POST("/login", loginRateLimitMiddleware(loginLimiter, log), svc.handleLogin)
		rs.POST("/newmessage", svc.handleNewMessage)
		rs.GET("/history", svc.handleHistory)
		rs.GET("/usersonline", svc.handleUsersOnline)
		rs.POST("/polling", svc.handlePolling)
	}

	// Health endpoints, rate limited to prevent abuse.
	r.GET("/healthz", publicRateLimitMiddleware(publicLimiter, log), handleHealthCheck)
	r.GET("/readyz", publicRateLimitMiddleware(publicLimiter, log), svc.handleReadyCheck)

	// Prometheus metrics, restricted to configured networks.
	metricsNets := parseNetworks(cfg.Server.MetricsAllowedNetworks, log)
	r.GET("/metrics/prometheus",
		metricsNetworkMiddleware(metricsNets, log),
		publicRateLimitMiddleware(publicLimiter, log),
		gin.WrapH(promhttp.Handler()),
	)

	// Everything else is the static browser client.
	fileServer := http.FileServer(http.Dir(cfg.Server.StaticDir))
	r.NoRoute(gin.WrapH(fileServer))

	log.Info("Chatroom service registered",
		"resource_prefix", constants.ResourcePrefix,
		"static_dir", cfg.Server.StaticDir)

	return svc, nil
}

// Shutdown gracefully stops the service: every session is destroyed,
// all parked long-polls are resolved, and background goroutines are
// stopped. Call before shutting down the HTTP server so parked polls
// do not hold up connection draining.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("Starting graceful shutdown of chatroom service")

	s.room.Shutdown()
	s.loginLimiter.StopCleanup()
	s.publicLimiter.StopCleanup()

	s.logger.Info("Chatroom service shutdown complete")
	return nil
}

// Room exposes the room for readiness reporting and tests.
func (s *Service) Room() *room.Room { return s.room }

// readBody reads a command payload enforcing the request body size
// ceiling. An oversized body yields a 413 and the connection is torn
// down; this is a resource-exhaustion defense, not business logic.
func (s *Service) readBody(c *gin.Context) ([]byte, bool) {
	reader := http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxRequestBodySize)
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.logger.Warn("Request body over size ceiling",
				"limit", constants.MaxRequestBodySize,
				"remote", c.ClientIP())
			httperrors.RespondPayloadTooLarge(c)
		} else {
			util.LogError(s.logger, "http", "read request body", err, "remote", c.ClientIP())
			httperrors.RespondBadRequest(c, "")
		}
		c.Abort()
		return nil, false
	}
	return body, true
}

// decodePayload unmarshals a command payload. Malformed JSON tears the
// connection down: the client is presumed misbehaving.
func (s *Service) decodePayload(c *gin.Context, body []byte, v interface{}) bool {
	if err := util.UnmarshalJSON(body, v); err != nil {
		s.logger.Warn("Malformed JSON payload", "remote", c.ClientIP(), "error", err)
		httperrors.RespondMalformedJSON(c)
		c.Abort()
		return false
	}
	return true
}

func (s *Service) handleLogin(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	var payload event.LoginPayload
	if !s.decodePayload(c, body, &payload) {
		return
	}

	res, err := s.cmd.Login(payload)
	if err != nil {
		httperrors.RespondBadRequest(c, err.Error())
		return
	}

	c.JSON(constants.StatusOK, res)
}

func (s *Service) handleNewMessage(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	var payload event.PostMessagePayload
	if !s.decodePayload(c, body, &payload) {
		return
	}

	res, err := s.cmd.PostMessage(payload)
	if err != nil {
		httperrors.RespondBadRequest(c, err.Error())
		return
	}

	c.JSON(constants.StatusOK, res)
}

func (s *Service) handleHistory(c *gin.Context) {
	c.JSON(constants.StatusOK, s.cmd.GetHistory())
}

func (s *Service) handleUsersOnline(c *gin.Context) {
	c.JSON(constants.StatusOK, s.cmd.GetOnlineUsers())
}

// handlePolling parks the request until an event is delivered to the
// session or the client goes away. The server imposes no upper bound
// on how long a poll may stay parked; the per-IP poll cap bounds the
// resource exposure instead.
func (s *Service) handlePolling(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	var payload event.AttachPayload
	if !s.decodePayload(c, body, &payload) {
		return
	}

	clientIP := c.ClientIP()
	if !s.pollLimiter.Acquire(clientIP) {
		s.logger.Warn("Poll cap reached for client", "remote", clientIP)
		c.JSON(constants.StatusTooManyRequests, gin.H{
			"error":   "rate_limit_exceeded",
			"message": constants.ErrMsgRateLimitExceeded,
		})
		return
	}
	defer s.pollLimiter.Release(clientIP)

	ch, res, err := s.cmd.AttachLongPoll(payload)
	if err != nil {
		httperrors.RespondBadRequest(c, err.Error())
		return
	}
	if ch == nil {
		c.JSON(constants.StatusOK, res)
		return
	}

	select {
	case ev, delivered := <-ch:
		if delivered {
			c.JSON(constants.StatusOK, ev)
			return
		}
		// Channel closed without a payload: the session was destroyed
		// (or the service is shutting down) while the poll was parked.
		c.JSON(constants.StatusOK, command.Result{Success: false, Reason: constants.ReasonNoSession})
	case <-c.Request.Context().Done():
		// Transport closed by the peer. The request-closed and
		// response-closed signals both funnel through this single
		// context, and Detach is idempotent besides.
		s.cmd.Detach(payload.SessionID)
	}
}

// handleHealthCheck is the liveness probe: if we can respond, we're alive.
func handleHealthCheck(c *gin.Context) {
	c.JSON(constants.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadyCheck is the readiness probe. The service carries no
// external dependencies, so readiness reports room occupancy.
func (s *Service) handleReadyCheck(c *gin.Context) {
	st := s.room.Stats()
	c.JSON(constants.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"room":      st,
	})
}

// traceMiddleware tags each request with a trace id for log correlation,
// honoring an X-Request-ID supplied by an upstream proxy.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(util.ContextWithTraceID(c.Request.Context(), traceID))
		c.Header("X-Request-ID", traceID)
		c.Next()
	}
}

// securityHeadersMiddleware adds standard HTTP security headers to all responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

// metricsMiddleware records HTTP request duration for Prometheus monitoring.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.HTTPRequestDuration.With(prometheus.Labels{
			"endpoint": c.FullPath(),
			"method":   c.Request.Method,
		}).Observe(time.Since(start).Seconds())
	}
}

// loginRateLimitMiddleware limits login attempts per client IP.
func loginRateLimitMiddleware(limiter *ratelimit.RequestLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			retryAfter := limiter.RetryAfter(clientIP)
			logger.Warn("Login rate limit exceeded",
				"remote", clientIP,
				"retry_after_ms", retryAfter)

			setRetryAfterHeader(c, retryAfter)
			c.JSON(constants.StatusTooManyRequests, gin.H{
				"error":          "rate_limit_exceeded",
				"message":        constants.ErrMsgRateLimitExceeded,
				"retry_after_ms": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// publicRateLimitMiddleware rate limits public endpoints (healthz,
// readyz, metrics) by client IP to prevent abuse.
func publicRateLimitMiddleware(limiter *ratelimit.RequestLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			setRetryAfterHeader(c, limiter.RetryAfter(clientIP))
			c.JSON(constants.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": constants.ErrMsgRateLimitExceeded,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRetryAfterHeader converts a retry-after in milliseconds to whole
// seconds, rounding up so the client never retries too early.
func setRetryAfterHeader(c *gin.Context, retryAfterMs int) {
	retryAfterSeconds := (retryAfterMs + constants.MillisecondsPerSecond - 1) / constants.MillisecondsPerSecond
	if retryAfterSeconds < constants.MinRetryAfterSeconds {
		retryAfterSeconds = constants.MinRetryAfterSeconds
	}
	c.Header(constants.HeaderRetryAfter, fmt.Sprintf("%d", retryAfterSeconds))
}

// metricsNetworkMiddleware restricts access to the metrics endpoint to
// configured networks.
func metricsNetworkMiddleware(allowedNets []*net.IPNet, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// If no networks configured, allow all (development mode).
		if len(allowedNets) == 0 {
			c.Next()
			return
		}

		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			logger.Warn("Could not parse client IP for metrics access", "ip", c.ClientIP())
			httperrors.RespondForbidden(c)
			c.Abort()
			return
		}

		for _, ipNet := range allowedNets {
			if ipNet.Contains(clientIP) {
				c.Next()
				return
			}
		}

		logger.Warn("Metrics access denied from unauthorized network", "client_ip", c.ClientIP())
		httperrors.RespondForbidden(c)
		c.Abort()
	}
}

// parseNetworks parses a comma-separated list of CIDR network strings.
func parseNetworks(networksStr string, logger *slog.Logger) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range strings.Split(networksStr, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("Invalid CIDR in metrics_allowed_networks", "cidr", cidr, "error", err)
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

// splitAndTrim splits a comma-separated list and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
