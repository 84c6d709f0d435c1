package group

import (
	"context"
	"sync"

	commonerrors "github.com/garaad/community/internal/common/errors"
)

// MemoryTransport delivers synchronously inside the publishing process.
type MemoryTransport struct {
	mu      sync.RWMutex
	deliver DeliverFunc
	closed  bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) Name() string { return "memory" }

func (t *MemoryTransport) Start(_ context.Context, deliver DeliverFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return commonerrors.ErrTransportClosed
	}
	t.deliver = deliver
	return nil
}

func (t *MemoryTransport) Publish(_ context.Context, group string, event Event) error {
	t.mu.RLock()
	deliver, closed := t.deliver, t.closed
	t.mu.RUnlock()

	if closed || deliver == nil {
		return commonerrors.ErrTransportClosed
	}
	deliver(group, event)
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.deliver = nil
	return nil
}
