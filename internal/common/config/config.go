package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/garaad/community/internal/common/constants"
	commonerrors "github.com/garaad/community/internal/common/errors"
)

const (
	TransportMemory = "memory"
	TransportRedis  = "redis"

	OverflowDrop       = "drop"
	OverflowDisconnect = "disconnect"
)

type CommunityConfig struct {
	HTTPPort              string `validate:"required,numeric"`
	JWTSecret             string `validate:"required,min=32"`
	TokenLeeway           time.Duration
	DatabaseURL           string
	RequireAuthentication bool
	GroupTransport        string        `validate:"oneof=memory redis"`
	RedisURL              string        `validate:"required_if=GroupTransport redis"`
	DirectoryTimeout      time.Duration `validate:"gt=0"`
	WebSocket             WebSocketConfig
}

type WebSocketConfig struct {
	WriteWait         time.Duration `validate:"gt=0"`
	PongWait          time.Duration `validate:"gt=0"`
	PingPeriod        time.Duration `validate:"gt=0,ltfield=PongWait"`
	MaxMessageSize    int64         `validate:"gt=0"`
	SendBufferSize    int           `validate:"gt=0"`
	MaxConnections    int           `validate:"gte=0"`
	MessagesPerSecond float64       `validate:"gte=0"`
	MessageBurst      int           `validate:"gte=0"`
	OverflowPolicy    string        `validate:"oneof=drop disconnect"`
	AllowedOrigins    []string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadCommunityConfig reads the process environment, optionally seeded from a
// .env file in the working directory.
func LoadCommunityConfig() (CommunityConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return CommunityConfig{}, fmt.Errorf("failed to load .env: %w", err)
	}

	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return CommunityConfig{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return CommunityConfig{}, err
	}

	cfg := CommunityConfig{
		HTTPPort:              getEnv("COMMUNITY_HTTP_PORT", constants.DefaultCommunityHTTPPort),
		JWTSecret:             jwtSecret,
		TokenLeeway:           getDurationEnv("JWT_LEEWAY", constants.DefaultTokenLeeway),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RequireAuthentication: getBoolEnv("REQUIRE_AUTHENTICATION", false),
		GroupTransport:        strings.ToLower(getEnv("GROUP_TRANSPORT", TransportMemory)),
		RedisURL:              getEnv("REDIS_URL", ""),
		DirectoryTimeout:      getDurationEnv("DIRECTORY_TIMEOUT", constants.DefaultDirectoryTimeout),
		WebSocket: WebSocketConfig{
			WriteWait:         getDurationEnv("WS_WRITE_WAIT", constants.DefaultWebSocketWriteWait),
			PongWait:          getDurationEnv("WS_PONG_WAIT", constants.DefaultWebSocketPongWait),
			PingPeriod:        getDurationEnv("WS_PING_PERIOD", constants.DefaultWebSocketPingPeriod),
			MaxMessageSize:    getInt64Env("WS_MAX_MESSAGE_SIZE", constants.DefaultWebSocketMaxMsgSize),
			SendBufferSize:    getIntEnv("WS_SEND_BUFFER", constants.DefaultWebSocketSendBufSize),
			MaxConnections:    getIntEnv("WS_MAX_CONNECTIONS", constants.DefaultWebSocketMaxConnections),
			MessagesPerSecond: getFloatEnv("WS_MESSAGES_PER_SECOND", constants.DefaultWebSocketMessagesPerSec),
			MessageBurst:      getIntEnv("WS_MESSAGE_BURST", constants.DefaultWebSocketMessageBurst),
			OverflowPolicy:    strings.ToLower(getEnv("WS_OVERFLOW_POLICY", constants.DefaultWebSocketOverflowPolicy)),
			AllowedOrigins:    getListEnv("WS_ALLOWED_ORIGINS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return CommunityConfig{}, err
	}

	return cfg, nil
}

func (c CommunityConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return commonerrors.ErrInvalidConfig.WithCause(err)
	}
	return nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithCause(errors.New(key))
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64Env(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getFloatEnv(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getListEnv(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
