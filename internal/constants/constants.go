// Package constants provides centralized constant definitions for the chatroom
// application. This eliminates magic numbers and strings throughout the codebase.
package constants

import "time"

// HTTP Status Codes
const (
	StatusOK                 = 200
	StatusBadRequest         = 400
	StatusPayloadTooLarge    = 413
	StatusTooManyRequests    = 429
	StatusServiceUnavailable = 503
)

// Sizes and Limits
const (
	MaxRequestBodySize    = 256000 // Hard ceiling on any command payload; exceeding it closes the connection
	MaxDisplayNameLength  = 30     // Maximum display name length in characters
	DefaultHistoryLimit   = 1000   // Number of retained chat messages; oldest are discarded
	DefaultLoginRateLimit = 30     // Login attempts per window per IP
	PublicEndpointRate    = 60     // Requests per minute for public endpoints (healthz, readyz, metrics)
	DefaultMaxPollsPerIP  = 16     // Concurrent parked long-polls allowed per client IP
	MaxEventsPerKey       = 1000   // Maximum rate limit events tracked per key
	MaxKeysTracked        = 100000 // Maximum distinct keys in rate limiter map
)

// Durations for session life-cycle and background operations
const (
	DefaultInactivityWindow = 15 * time.Second // Session destroyed if no long-poll re-attaches in this window
	DefaultRateWindow       = 1 * time.Minute  // Rate limiting window
	DefaultCleanupInterval  = 5 * time.Minute  // Rate limiter cleanup goroutine interval
	ShutdownDrainTimeout    = 5 * time.Second  // Grace period for resolving parked long-polls on shutdown
	HealthCheckTimeout      = 2 * time.Second  // Health check operations
)

// HTTP Server Timeouts (standalone server mode).
// WriteTimeout is deliberately zero: a parked long-poll may stay open
// indefinitely, and a write deadline would sever it mid-park.
const (
	HTTPReadTimeout  = 15 * time.Second
	HTTPWriteTimeout = 0 * time.Second
	HTTPIdleTimeout  = 120 * time.Second
)

// Default Configuration Values
const (
	DefaultPort      = 8088
	DefaultStaticDir = "./public"
	DefaultLogLevel  = "info"
	ResourcePrefix   = "/rs" // HTTP path prefix for the command resources
)

// Failure reason codes surfaced to clients in command results
const (
	ReasonNameTooLong = "LOGIN_USERNAME_TOO_LONG"
	ReasonNameInUse   = "LOGIN_ALREADY_IN_USE"
	ReasonNoSession   = "NO_USER_LOGGED"
)

// HTTP Headers
const (
	HeaderRetryAfter = "Retry-After"
)

// Error Messages
const (
	ErrMsgRateLimitExceeded = "Too many requests. Please try again later."
	ErrMsgPayloadTooLarge   = "Request body exceeds the allowed size."
	ErrMsgMalformedJSON     = "Request body is not valid JSON."
)

// Retry After Calculation
const (
	MillisecondsPerSecond = 1000
	MinRetryAfterSeconds  = 1 // Minimum retry-after value in seconds
)

// Network configuration defaults
const (
	DefaultTrustedProxies         = "10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"
	DefaultMetricsAllowedNetworks = "10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8"
)
