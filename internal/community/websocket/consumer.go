package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/garaad/community/internal/common/config"
	"github.com/garaad/community/internal/common/constants"
	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/community/auth"
	"github.com/garaad/community/internal/community/group"
	"github.com/garaad/community/internal/observability/metrics"
)

type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "connecting"
	}
}

// Broadcaster is the part of the group registry a consumer talks to.
type Broadcaster interface {
	Join(group string, m group.Member) error
	Leave(group, memberID string) bool
	Broadcast(ctx context.Context, group string, event group.Event) error
}

type Options struct {
	WriteWait         time.Duration
	PongWait          time.Duration
	PingPeriod        time.Duration
	MaxMessageSize    int64
	SendBufferSize    int
	MessagesPerSecond float64
	MessageBurst      int
	OverflowPolicy    string
}

func DefaultOptions() Options {
	return Options{
		WriteWait:         constants.DefaultWebSocketWriteWait,
		PongWait:          constants.DefaultWebSocketPongWait,
		PingPeriod:        constants.DefaultWebSocketPingPeriod,
		MaxMessageSize:    constants.DefaultWebSocketMaxMsgSize,
		SendBufferSize:    constants.DefaultWebSocketSendBufSize,
		MessagesPerSecond: constants.DefaultWebSocketMessagesPerSec,
		MessageBurst:      constants.DefaultWebSocketMessageBurst,
		OverflowPolicy:    constants.DefaultWebSocketOverflowPolicy,
	}
}

func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	return Options{
		WriteWait:         cfg.WriteWait,
		PongWait:          cfg.PongWait,
		PingPeriod:        cfg.PingPeriod,
		MaxMessageSize:    cfg.MaxMessageSize,
		SendBufferSize:    cfg.SendBufferSize,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
		OverflowPolicy:    cfg.OverflowPolicy,
	}
}

// Consumer is one client connection's membership in a group. It is
// single-use: once closed it never rejoins.
type Consumer struct {
	id       string
	identity *auth.Identity
	group    string
	registry Broadcaster
	opts     Options
	limiter  *rate.Limiter
	log      *logger.Logger

	conn  *gorillaWS.Conn
	ctx   context.Context
	send  chan []byte
	done  chan struct{}
	state atomic.Int32

	closeOnce sync.Once
}

// NewConsumer creates a consumer for groupName. identity is nil for
// anonymous connections. ctx carries request-scoped values for logging and
// must outlive the connection.
func NewConsumer(ctx context.Context, registry Broadcaster, groupName string, identity *auth.Identity, opts Options, log *logger.Logger) *Consumer {
	limit := rate.Inf
	if opts.MessagesPerSecond > 0 {
		limit = rate.Limit(opts.MessagesPerSecond)
	}
	burst := opts.MessageBurst
	if burst <= 0 {
		burst = 1
	}
	sendSize := opts.SendBufferSize
	if sendSize <= 0 {
		sendSize = constants.DefaultWebSocketSendBufSize
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = constants.DefaultWebSocketPingPeriod
	}
	if opts.PongWait <= opts.PingPeriod {
		opts.PongWait = opts.PingPeriod * 10 / 9
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = constants.DefaultWebSocketWriteWait
	}

	return &Consumer{
		id:       uuid.NewString(),
		identity: identity,
		group:    groupName,
		registry: registry,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
		log:      log,
		ctx:      ctx,
		send:     make(chan []byte, sendSize),
		done:     make(chan struct{}),
	}
}

func (c *Consumer) ID() string { return c.id }

func (c *Consumer) Identity() *auth.Identity { return c.identity }

func (c *Consumer) State() State { return State(c.state.Load()) }

func (c *Consumer) userID() string {
	if c.identity == nil {
		return "anonymous"
	}
	return c.identity.UserID
}

// Join registers the consumer with its group. A failed join leaves the
// consumer closed.
func (c *Consumer) Join() error {
	if c.State() == StateClosed {
		return commonerrors.ErrRegistrationFailed.WithCause(commonerrors.ErrTransportClosed)
	}
	if err := c.registry.Join(c.group, c); err != nil {
		c.state.Store(int32(StateClosed))
		return err
	}
	return nil
}

// Deliver queues the event's message for the writer. It never blocks: a full
// queue either drops the message or disconnects the consumer, depending on
// the overflow policy.
func (c *Consumer) Deliver(event group.Event) error {
	select {
	case <-c.done:
		return commonerrors.ErrTransportClosed
	default:
	}

	select {
	case c.send <- []byte(event.Message):
		return nil
	case <-c.done:
		return commonerrors.ErrTransportClosed
	default:
	}

	if c.opts.OverflowPolicy == config.OverflowDrop {
		return commonerrors.ErrMemberQueueFull
	}

	c.log.WithFields(c.ctx, logger.Fields{
		"connection_id": c.id,
		"user_id":       c.userID(),
		"action":        "ws_slow_consumer",
	}).Warn("websocket send queue full, disconnecting")
	c.shutdown("slow_consumer")
	return commonerrors.ErrMemberQueueFull
}

// Close leaves the group and stops the connection. Safe to call repeatedly.
func (c *Consumer) Close() {
	c.shutdown("server_shutdown")
}

func (c *Consumer) shutdown(reason string) {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosed)))
		close(c.done)
		c.registry.Leave(c.group, c.id)

		if prev == StateJoined {
			// conn was stored before the Connecting->Joined swap. Expiring the
			// read deadline wakes readPump so a closed consumer stops relaying
			// while writePump still gets to send the close frame.
			_ = c.conn.UnderlyingConn().SetReadDeadline(time.Now())
			metrics.CommunityConnectionsActive.Dec()
			metrics.CommunityDisconnections.WithLabelValues(reason).Inc()
			c.log.WithFields(c.ctx, logger.Fields{
				"connection_id": c.id,
				"user_id":       c.userID(),
				"reason":        reason,
				"action":        "ws_disconnected",
			}).Info("websocket disconnected")
		}
	})
}

// Start takes ownership of an upgraded connection and runs the read and
// write pumps until the connection ends. writePump owns closing the socket.
func (c *Consumer) Start(conn *gorillaWS.Conn) {
	c.conn = conn
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateJoined)) {
		conn.Close()
		return
	}

	metrics.CommunityConnectionsActive.Inc()
	metrics.CommunityConnectionsTotal.Inc()

	go c.writePump()
	go c.readPump()
}

func (c *Consumer) readPump() {
	reason := "client_closed"
	defer func() { c.shutdown(reason) }()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.State() == StateClosed {
			return commonerrors.ErrTransportClosed
		}
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if c.State() == StateClosed {
			return
		}
		if err != nil {
			reason = readErrorReason(err)
			if gorillaWS.IsUnexpectedCloseError(err, gorillaWS.CloseGoingAway, gorillaWS.CloseNormalClosure, gorillaWS.CloseNoStatusReceived) {
				c.log.WithFields(c.ctx, logger.Fields{
					"connection_id": c.id,
					"user_id":       c.userID(),
					"action":        "ws_read_error",
				}).Warnf("websocket read error: %v", err)
			}
			return
		}

		metrics.CommunityMessagesReceived.Inc()
		c.relay(data)
	}
}

// relay wraps one inbound document into a group event. Frames that are not
// JSON objects are skipped and the connection stays open.
func (c *Consumer) relay(data []byte) {
	if c.State() == StateClosed {
		return
	}
	if !c.limiter.Allow() {
		metrics.CommunityMessagesRejected.WithLabelValues("rate_limited").Inc()
		c.log.WithFields(c.ctx, logger.Fields{
			"connection_id": c.id,
			"user_id":       c.userID(),
			"action":        "ws_rate_limited",
		}).Warn("websocket message dropped: rate limit exceeded")
		return
	}

	if !isJSONObject(data) {
		metrics.CommunityMessagesRejected.WithLabelValues("invalid_json").Inc()
		c.log.WithFields(c.ctx, logger.Fields{
			"connection_id": c.id,
			"user_id":       c.userID(),
			"size":          len(data),
			"action":        "ws_invalid_message",
		}).Warn("websocket message skipped: not a JSON object")
		return
	}

	event := group.Event{
		Type:    constants.ChatMessageEventType,
		Message: json.RawMessage(data),
		Origin:  c.id,
	}
	if err := c.registry.Broadcast(c.ctx, c.group, event); err != nil {
		c.log.WithFields(c.ctx, logger.Fields{
			"connection_id": c.id,
			"group":         c.group,
			"action":        "ws_broadcast_failed",
		}).Errorf("websocket broadcast failed: %v", err)
	}
}

func (c *Consumer) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.TextMessage, message); err != nil {
				c.shutdown("write_error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.PingMessage, nil); err != nil {
				c.shutdown("ping_failed")
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseGoingAway, ""))
			return
		}
	}
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(data)
}

func readErrorReason(err error) string {
	var closeErr *gorillaWS.CloseError
	switch {
	case errors.Is(err, gorillaWS.ErrReadLimit):
		return "message_too_large"
	case errors.As(err, &closeErr):
		return "client_closed"
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "keepalive_timeout"
		}
		return "read_error"
	}
}
