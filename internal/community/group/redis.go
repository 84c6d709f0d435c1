package group

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/garaad/community/internal/common/constants"
	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/observability/metrics"
)

// RedisTransport fans events out across processes through Redis pub/sub. Each
// process holds one pattern subscription covering every group channel.
type RedisTransport struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	done   chan struct{}
	closed bool
}

func NewRedisTransport(rdb *goredis.Client, log *logger.Logger) *RedisTransport {
	return &RedisTransport{
		rdb:    rdb,
		prefix: constants.RedisChannelPrefix,
		log:    log,
	}
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) channel(group string) string {
	return t.prefix + group
}

func (t *RedisTransport) Start(ctx context.Context, deliver DeliverFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return commonerrors.ErrTransportClosed
	}
	if t.pubsub != nil {
		return fmt.Errorf("redis transport already started")
	}

	ps := t.rdb.PSubscribe(ctx, t.prefix+"*")
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to %s*: %w", t.prefix, err)
	}

	t.pubsub = ps
	t.done = make(chan struct{})
	go t.receive(ps, deliver, t.done)

	t.log.Infof("redis transport subscribed pattern=%s*", t.prefix)
	return nil
}

func (t *RedisTransport) receive(ps *goredis.PubSub, deliver DeliverFunc, done chan struct{}) {
	defer close(done)

	for msg := range ps.Channel() {
		metrics.PubSubMessagesReceived.WithLabelValues(msg.Pattern).Inc()

		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			metrics.PubSubErrors.WithLabelValues("decode").Inc()
			t.log.WithFields(context.Background(), logger.Fields{
				"channel": msg.Channel,
				"action":  "pubsub_decode_failed",
			}).Warnf("redis transport dropped undecodable event: %v", err)
			continue
		}

		deliver(strings.TrimPrefix(msg.Channel, t.prefix), event)
	}
}

func (t *RedisTransport) Publish(ctx context.Context, group string, event Event) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return commonerrors.ErrTransportClosed
	}

	data, err := encodeEvent(event)
	if err != nil {
		return commonerrors.ErrMarshalError.WithCause(err)
	}

	if err := t.rdb.Publish(ctx, t.channel(group), data).Err(); err != nil {
		metrics.PubSubErrors.WithLabelValues("publish").Inc()
		return commonerrors.ErrDeliveryFailed.WithCause(fmt.Errorf("publish to %s: %w", t.channel(group), err))
	}
	return nil
}

// encodeEvent marshals event for the wire without HTML-escaping the relayed
// message, so <, > and & reach other processes unchanged.
func encodeEvent(event Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Close stops the subscription and waits for the receive loop to exit. The
// Redis client itself belongs to the caller.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ps, done := t.pubsub, t.done
	t.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
