package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garaad/community/internal/common/constants"
	commonhttp "github.com/garaad/community/internal/common/http"
	"github.com/garaad/community/internal/common/jwtverify"
	"github.com/garaad/community/internal/common/logger"
)

// StatsSource reports local membership for the stats endpoint.
type StatsSource interface {
	Members(group string) int
	TransportName() string
}

type Config struct {
	WebSocket      http.Handler
	Stats          StatsSource
	JWTSecret      string
	UpgradeLimiter *commonhttp.RateLimiter
	HealthChecks   []commonhttp.HealthCheck
	Log            *logger.Logger
}

type Handler struct {
	stats StatsSource
	log   *logger.Logger
}

type statsResponse struct {
	Group     string `json:"group"`
	Members   int    `json:"members"`
	Transport string `json:"transport"`
}

// NewRouter mounts the upgrade endpoint under every path form clients use,
// with and without a room suffix and trailing slash. The room never selects
// a different group.
func NewRouter(cfg Config) http.Handler {
	h := &Handler{stats: cfg.Stats, log: cfg.Log}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeNotFound, "not found", nil, commonhttp.TraceIDFromContext(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteErrorEnvelope(w, http.StatusMethodNotAllowed, commonhttp.CodeMethodNotAllowed, "method not allowed", nil, commonhttp.TraceIDFromContext(r.Context()))
	})

	r.Get("/health", commonhttp.HealthHandler(cfg.Log, cfg.HealthChecks...))
	r.Handle("/metrics", promhttp.Handler())

	r.With(jwtverify.Middleware(cfg.JWTSecret, cfg.Log)).Get("/api/community/stats", h.communityStats)

	r.Group(func(r chi.Router) {
		if cfg.UpgradeLimiter != nil {
			r.Use(cfg.UpgradeLimiter.Middleware())
		}
		for _, pattern := range []string{
			"/ws/community",
			"/ws/community/",
			"/ws/community/{room}",
			"/ws/community/{room}/",
		} {
			r.Get(pattern, cfg.WebSocket.ServeHTTP)
		}
	})

	return r
}

func (h *Handler) communityStats(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())
	resp := statsResponse{
		Group:     constants.CommunityGroup,
		Members:   h.stats.Members(constants.CommunityGroup),
		Transport: h.stats.TransportName(),
	}

	h.log.WithFields(r.Context(), logger.Fields{
		"user_id": claims.UserID,
		"members": resp.Members,
		"action":  "community_stats",
	}).Debug("community stats served")
	commonhttp.WriteJSON(w, http.StatusOK, resp)
}
