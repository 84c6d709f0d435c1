package group

import (
	"context"
	"fmt"
	"sync"
	"time"

	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/observability/metrics"
)

// Member is a non-owning handle to one connection. Deliver must not block.
type Member interface {
	ID() string
	Deliver(event Event) error
	Close()
}

type Options struct {
	// MaxMembers caps membership across all groups; zero means unlimited.
	MaxMembers int
}

type Registry struct {
	mu         sync.RWMutex
	groups     map[string]map[string]Member
	total      int
	closed     bool
	maxMembers int

	transport Transport
	log       *logger.Logger
}

func NewRegistry(transport Transport, log *logger.Logger, opts Options) *Registry {
	return &Registry{
		groups:     make(map[string]map[string]Member),
		maxMembers: opts.MaxMembers,
		transport:  transport,
		log:        log,
	}
}

// Start connects the registry to its transport so published events reach
// local members.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.transport.Start(ctx, r.fanout); err != nil {
		return fmt.Errorf("failed to start %s transport: %w", r.transport.Name(), err)
	}
	return nil
}

func (r *Registry) TransportName() string {
	return r.transport.Name()
}

func (r *Registry) Join(group string, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return commonerrors.ErrRegistrationFailed.WithCause(commonerrors.ErrTransportClosed)
	}

	members, ok := r.groups[group]
	if ok {
		if _, exists := members[m.ID()]; exists {
			return nil
		}
	}

	if r.maxMembers > 0 && r.total >= r.maxMembers {
		return commonerrors.ErrRegistrationFailed.WithCause(fmt.Errorf("member limit %d reached", r.maxMembers))
	}

	if !ok {
		members = make(map[string]Member)
		r.groups[group] = members
	}
	members[m.ID()] = m
	r.total++
	return nil
}

// Leave removes memberID from group. Removing a non-member is a no-op and
// reports false.
func (r *Registry) Leave(group, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return false
	}
	if _, exists := members[memberID]; !exists {
		return false
	}

	delete(members, memberID)
	r.total--
	if len(members) == 0 {
		delete(r.groups, group)
	}
	return true
}

func (r *Registry) Broadcast(ctx context.Context, group string, event Event) error {
	if err := r.transport.Publish(ctx, group, event); err != nil {
		return fmt.Errorf("broadcast to %s: %w", group, err)
	}
	metrics.CommunityBroadcastsTotal.WithLabelValues(r.transport.Name()).Inc()
	return nil
}

func (r *Registry) Members(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

func (r *Registry) IsMember(group, memberID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[group][memberID]
	return ok
}

func (r *Registry) snapshot(group string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.groups[group]
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

// fanout delivers event to the members present when the snapshot is taken.
// The lock is not held while delivering.
func (r *Registry) fanout(group string, event Event) {
	start := time.Now()
	members := r.snapshot(group)

	for _, m := range members {
		if err := m.Deliver(event); err != nil {
			metrics.CommunityDeliveryFailures.WithLabelValues(deliveryFailureReason(err)).Inc()
			r.log.WithFields(context.Background(), logger.Fields{
				"group":     group,
				"member_id": m.ID(),
				"action":    "group_delivery_failed",
			}).Warnf("group delivery failed: %v", err)
			continue
		}
		metrics.CommunityDeliveriesTotal.Inc()
	}

	metrics.CommunityFanoutDurationSeconds.Observe(time.Since(start).Seconds())
}

func deliveryFailureReason(err error) string {
	if de, ok := commonerrors.AsDomainError(err); ok {
		return de.Code()
	}
	return "unknown"
}

// Close refuses further joins, stops the transport and closes every member.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var members []Member
	for _, g := range r.groups {
		for _, m := range g {
			members = append(members, m)
		}
	}
	r.groups = make(map[string]map[string]Member)
	r.total = 0
	r.mu.Unlock()

	err := r.transport.Close()
	for _, m := range members {
		m.Close()
	}
	return err
}
