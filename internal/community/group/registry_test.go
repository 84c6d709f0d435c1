package group_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/community/group"
	"github.com/garaad/community/internal/observability/metrics"
)

const testGroup = "community_global"

type fakeMember struct {
	id string

	mu       sync.Mutex
	received []group.Event
	closed   bool

	deliverFunc func(event group.Event) error
}

func newFakeMember(id string) *fakeMember {
	return &fakeMember{id: id}
}

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Deliver(event group.Event) error {
	if m.deliverFunc != nil {
		if err := m.deliverFunc(event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, event)
	return nil
}

func (m *fakeMember) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *fakeMember) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func setupRegistry(t *testing.T, opts group.Options) *group.Registry {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{}, "test", "error")
	reg := group.NewRegistry(group.NewMemoryTransport(), log, opts)
	require.NoError(t, reg.Start(context.Background()))
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func chatEvent(body string) group.Event {
	return group.Event{Type: "chat_message", Message: json.RawMessage(body)}
}

func TestRegistry_JoinLeaveReplay(t *testing.T) {
	reg := setupRegistry(t, group.Options{})
	a, b, c := newFakeMember("a"), newFakeMember("b"), newFakeMember("c")

	require.NoError(t, reg.Join(testGroup, a))
	require.NoError(t, reg.Join(testGroup, b))
	require.NoError(t, reg.Join(testGroup, c))
	assert.True(t, reg.Leave(testGroup, "b"))
	require.NoError(t, reg.Join(testGroup, a))

	assert.Equal(t, 2, reg.Members(testGroup))
	assert.True(t, reg.IsMember(testGroup, "a"))
	assert.False(t, reg.IsMember(testGroup, "b"))
	assert.True(t, reg.IsMember(testGroup, "c"))
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	reg := setupRegistry(t, group.Options{})
	a := newFakeMember("a")
	require.NoError(t, reg.Join(testGroup, a))

	assert.True(t, reg.Leave(testGroup, "a"))
	assert.False(t, reg.Leave(testGroup, "a"))
	assert.False(t, reg.Leave("unknown", "a"))
	assert.Equal(t, 0, reg.Members(testGroup))
}

func TestRegistry_BroadcastDeliversExactlyOnce(t *testing.T) {
	reg := setupRegistry(t, group.Options{})
	members := make([]*fakeMember, 5)
	for i := range members {
		members[i] = newFakeMember(fmt.Sprintf("m%d", i))
		require.NoError(t, reg.Join(testGroup, members[i]))
	}
	outsider := newFakeMember("outsider")
	left := newFakeMember("left")
	require.NoError(t, reg.Join(testGroup, left))
	reg.Leave(testGroup, "left")

	require.NoError(t, reg.Broadcast(context.Background(), testGroup, chatEvent(`{"type":"chat","message":"hi"}`)))

	for _, m := range members {
		assert.Equal(t, 1, m.count(), m.id)
	}
	assert.Equal(t, 0, outsider.count())
	assert.Equal(t, 0, left.count())
}

func TestRegistry_BroadcastIsolatesFailures(t *testing.T) {
	reg := setupRegistry(t, group.Options{})
	failing := newFakeMember("a")
	failing.deliverFunc = func(group.Event) error { return commonerrors.ErrMemberQueueFull }
	healthy := newFakeMember("b")
	require.NoError(t, reg.Join(testGroup, failing))
	require.NoError(t, reg.Join(testGroup, healthy))
	failures := metrics.CommunityDeliveryFailures.WithLabelValues("MEMBER_QUEUE_FULL")
	before := testutil.ToFloat64(failures)

	err := reg.Broadcast(context.Background(), testGroup, chatEvent(`{"message":"x"}`))

	require.NoError(t, err)
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 0, failing.count())
	assert.Equal(t, before+1, testutil.ToFloat64(failures))
}

func TestRegistry_MemberLeavingDuringBroadcast(t *testing.T) {
	reg := setupRegistry(t, group.Options{})
	a, b, c := newFakeMember("a"), newFakeMember("b"), newFakeMember("c")
	// a disconnects while the broadcast is in flight
	a.deliverFunc = func(group.Event) error {
		reg.Leave(testGroup, "a")
		return commonerrors.ErrTransportClosed
	}
	for _, m := range []*fakeMember{a, b, c} {
		require.NoError(t, reg.Join(testGroup, m))
	}

	require.NoError(t, reg.Broadcast(context.Background(), testGroup, chatEvent(`{"message":"1"}`)))
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 1, c.count())
	assert.False(t, reg.IsMember(testGroup, "a"))

	a.deliverFunc = nil
	require.NoError(t, reg.Broadcast(context.Background(), testGroup, chatEvent(`{"message":"2"}`)))
	assert.Equal(t, 0, a.count())
	assert.Equal(t, 2, b.count())
}

func TestRegistry_MemberLimit(t *testing.T) {
	reg := setupRegistry(t, group.Options{MaxMembers: 2})
	require.NoError(t, reg.Join(testGroup, newFakeMember("a")))
	require.NoError(t, reg.Join(testGroup, newFakeMember("b")))

	err := reg.Join(testGroup, newFakeMember("c"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrRegistrationFailed))

	// rejoining an existing member does not count against the cap
	assert.NoError(t, reg.Join(testGroup, newFakeMember("a")))

	reg.Leave(testGroup, "a")
	assert.NoError(t, reg.Join(testGroup, newFakeMember("c")))
}

func TestRegistry_CloseClosesMembersAndRefusesJoins(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{}, "test", "error")
	reg := group.NewRegistry(group.NewMemoryTransport(), log, group.Options{})
	require.NoError(t, reg.Start(context.Background()))
	a := newFakeMember("a")
	require.NoError(t, reg.Join(testGroup, a))

	require.NoError(t, reg.Close())

	assert.True(t, a.closed)
	assert.Equal(t, 0, reg.Members(testGroup))
	assert.True(t, errors.Is(reg.Join(testGroup, newFakeMember("b")), commonerrors.ErrRegistrationFailed))
	assert.True(t, errors.Is(reg.Broadcast(context.Background(), testGroup, chatEvent(`{}`)), commonerrors.ErrTransportClosed))
	assert.NoError(t, reg.Close())
}

func TestRegistry_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	reg := setupRegistry(t, group.Options{})
	stable := newFakeMember("stable")
	require.NoError(t, reg.Join(testGroup, stable))

	const workers = 16
	const broadcasts = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := newFakeMember(fmt.Sprintf("w%d", i))
			for j := 0; j < 20; j++ {
				_ = reg.Join(testGroup, m)
				reg.Leave(testGroup, m.id)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < broadcasts; j++ {
			_ = reg.Broadcast(context.Background(), testGroup, chatEvent(`{"n":1}`))
		}
	}()
	wg.Wait()

	assert.Equal(t, broadcasts, stable.count())
	assert.Equal(t, 1, reg.Members(testGroup))
}

func TestMemoryTransport_PublishBeforeStart(t *testing.T) {
	tr := group.NewMemoryTransport()
	err := tr.Publish(context.Background(), testGroup, chatEvent(`{}`))
	assert.True(t, errors.Is(err, commonerrors.ErrTransportClosed))
}
