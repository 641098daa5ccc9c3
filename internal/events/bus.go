package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Post once Shutdown has started.
var ErrBusClosed = errors.New("event bus is shut down")

// Bus is an in-process pub/sub. Every delivered message must be passed back
// to Acknowledge; Shutdown waits for outstanding acknowledgements.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[Type][]chan Message
	bufferSize  int

	inflight sync.WaitGroup
	posting  sync.WaitGroup

	closing   chan struct{}
	closeOnce sync.Once
	closedMu  sync.Mutex
	closed    bool
}

// NewBus creates a bus whose subscriber channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:      logger.Named("events"),
		subscribers: make(map[Type][]chan Message),
		bufferSize:  bufferSize,
		closing:     make(chan struct{}),
	}
}

// Post delivers payload to every subscriber of t, blocking while a
// subscriber's buffer is full.
func (b *Bus) Post(ctx context.Context, t Type, payload any) error {
	b.closedMu.Lock()
	if b.closed {
		b.closedMu.Unlock()
		return ErrBusClosed
	}
	b.posting.Add(1)
	b.closedMu.Unlock()
	defer b.posting.Done()

	msg := Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      t,
		Payload:   payload,
	}
	b.logger.Debug("Posting event.", zap.String("type", string(t)), zap.String("id", msg.ID))

	b.mu.RLock()
	subs := append([]chan Message(nil), b.subscribers[t]...)
	b.mu.RUnlock()

	for _, ch := range subs {
		b.inflight.Add(1)
		select {
		case ch <- msg:
		case <-ctx.Done():
			b.inflight.Done()
			return ctx.Err()
		case <-b.closing:
			b.inflight.Done()
			return ErrBusClosed
		}
	}
	return nil
}

// Subscribe returns a channel receiving every message of the given types and
// a function that detaches it. The channel is closed by Shutdown.
func (b *Bus) Subscribe(types ...Type) (<-chan Message, func()) {
	if len(types) == 0 {
		panic("events: Subscribe needs at least one type")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closedMu.Lock()
	closed := b.closed
	b.closedMu.Unlock()
	if closed {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Message, b.bufferSize)
	types = append([]Type(nil), types...)
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range types {
			subs := b.subscribers[t]
			for i, c := range subs {
				if c == ch {
					subs = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(b.subscribers, t)
			} else {
				b.subscribers[t] = subs
			}
		}
	}
	return ch, unsubscribe
}

// Acknowledge marks msg as processed.
func (b *Bus) Acknowledge(Message) {
	b.inflight.Done()
}

// Shutdown stops accepting posts, closes subscriber channels, drops anything
// still buffered and waits for in-flight messages to be acknowledged.
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() {
		b.closedMu.Lock()
		b.closed = true
		b.closedMu.Unlock()

		close(b.closing)
		b.posting.Wait()

		b.mu.Lock()
		unique := make(map[chan Message]struct{})
		for _, subs := range b.subscribers {
			for _, ch := range subs {
				unique[ch] = struct{}{}
			}
		}
		dropped := 0
		for ch := range unique {
			close(ch)
			for range ch {
				dropped++
				b.inflight.Done()
			}
		}
		b.subscribers = make(map[Type][]chan Message)
		b.mu.Unlock()

		if dropped > 0 {
			b.logger.Debug("Dropped buffered events during shutdown.", zap.Int("count", dropped))
		}
		b.inflight.Wait()
		b.logger.Debug("Event bus shut down.")
	})
}
