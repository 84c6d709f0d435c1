package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	gorillaWS "github.com/gorilla/websocket"

	"github.com/garaad/community/internal/common/constants"
	commonhttp "github.com/garaad/community/internal/common/http"
	"github.com/garaad/community/internal/common/jwtverify"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/community/auth"
	"github.com/garaad/community/internal/observability/metrics"
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) auth.Result
}

// Handler upgrades requests into group consumers: authenticate, join, then
// accept. Nothing is upgraded unless the join succeeded.
type Handler struct {
	authenticator Authenticator
	registry      Broadcaster
	group         string
	opts          Options
	upgrader      gorillaWS.Upgrader
	log           *logger.Logger
}

func NewHandler(authenticator Authenticator, registry Broadcaster, opts Options, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		authenticator: authenticator,
		registry:      registry,
		group:         constants.CommunityGroup,
		opts:          opts,
		upgrader: gorillaWS.Upgrader{
			ReadBufferSize:  constants.WebSocketReadBufferSize,
			WriteBufferSize: constants.WebSocketWriteBufferSize,
			Subprotocols:    []string{jwtverify.BearerProtocol},
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fields := logger.Fields{
		"remote_ip": commonhttp.GetClientIP(r),
		"path":      r.URL.Path,
	}
	if room := chi.URLParam(r, "room"); room != "" {
		fields["room"] = room
	}

	if !gorillaWS.IsWebSocketUpgrade(r) {
		commonhttp.WriteError(w, http.StatusBadRequest, "websocket upgrade required")
		return
	}

	result := h.authenticator.Authenticate(ctx, r)
	if result.Kind == auth.Rejected {
		fields["action"] = "ws_auth_rejected"
		fields["reason"] = result.Reason()
		h.log.WithFields(ctx, fields).Warn("websocket upgrade refused")
		commonhttp.HandleError(w, r, result.Err, h.log)
		return
	}

	// hijacked connections outlive the request context
	connCtx := context.WithoutCancel(ctx)
	consumer := NewConsumer(connCtx, h.registry, h.group, result.Identity, h.opts, h.log)
	fields["connection_id"] = consumer.ID()
	fields["user_id"] = consumer.userID()

	if err := consumer.Join(); err != nil {
		metrics.CommunityRegistrationFailures.Inc()
		fields["action"] = "ws_join_failed"
		h.log.WithFields(ctx, fields).Errorf("websocket group join failed: %v", err)
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		consumer.shutdown("upgrade_failed")
		fields["action"] = "ws_upgrade_failed"
		h.log.WithFields(ctx, fields).Errorf("websocket upgrade failed: %v", err)
		return
	}

	fields["action"] = "ws_connected"
	fields["auth"] = result.Kind.String()
	h.log.WithFields(ctx, fields).Info("websocket connected")

	consumer.Start(conn)
}

// originChecker allows the listed origins, or "*" for any. With no list only
// same-host origins and clients that send no Origin are allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	_, allowAll := set["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if len(set) > 0 {
			_, ok := set[strings.ToLower(origin)]
			return ok
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := r.Host
		if host == "" {
			host = r.URL.Host
		}
		return strings.EqualFold(u.Host, host)
	}
}
