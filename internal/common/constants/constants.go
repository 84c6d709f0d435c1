package constants

import "time"

const (
	JWTSecretMinLength = 32

	CommunityGroup       = "community_global"
	ChatMessageEventType = "chat_message"

	DefaultCommunityHTTPPort = "8083"

	DefaultTokenLeeway          = 5 * time.Second
	DefaultDirectoryTimeout     = 3 * time.Second
	DefaultDirectoryBreakerTrip = 5
	DefaultDirectoryBreakerOpen = 30 * time.Second

	DBPoolMaxOpenConns    = 25
	DBPoolMinOpenConns    = 2
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 5 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultWebSocketWriteWait      = 10 * time.Second
	DefaultWebSocketPongWait       = 60 * time.Second
	DefaultWebSocketPingPeriod     = 54 * time.Second
	DefaultWebSocketMaxMsgSize     = 64 * 1024
	DefaultWebSocketSendBufSize    = 256
	DefaultWebSocketMaxConnections = 10000
	DefaultWebSocketMessagesPerSec = 10
	DefaultWebSocketMessageBurst   = 20
	DefaultWebSocketOverflowPolicy = "disconnect"

	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	RateLimitUpgradeRequestsPerSecond = 5
	RateLimitUpgradeBurst             = 10
	RateLimitCleanupInterval          = 5 * time.Minute

	RedisChannelPrefix = "community:group:"

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
