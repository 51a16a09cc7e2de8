package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPoolSize = 10000
	defaultTimeout  = 10 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

type Config struct {
	// PoolSize bounds the handlers running at once for a single event name.
	PoolSize int
	// Timeout bounds a single handler call.
	Timeout time.Duration
}

// Bus is an in-memory event bus. Each event name has its own handler pool, so a slow
// subscriber of one event does not hold back the others.
type Bus struct {
	poolSize int
	timeout  time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]Handler
	pools    map[string]chan struct{}
	stopped  bool
}

// NewBus create a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus(c Config) *Bus {
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	return &Bus{
		poolSize: c.PoolSize,
		timeout:  c.Timeout,
		handlers: make(map[string][]Handler),
		pools:    make(map[string]chan struct{}),
	}
}

// Subscribe to an event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
	if _, ok := b.pools[name]; !ok {
		b.pools[name] = make(chan struct{}, b.poolSize)
	}
}

// Publish an event. Events published after Stop are dropped. Handlers are registered with the bus
// under the lock, but waiting for a free pool slot happens outside it, so a handler may publish while
// Stop is waiting.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		zap.L().Warn("event: bus stopped, event dropped", zap.String("event", e.Name()))
		return
	}

	pool := b.pools[e.Name()]
	handlers := append([]Handler(nil), b.handlers[e.Name()]...)
	b.wg.Add(len(handlers))
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, pool, h, e)
	}
}

// dispatch runs h once a pool slot is free. The caller has already counted it in wg.
func (b *Bus) dispatch(ctx context.Context, pool chan struct{}, h Handler, e Event) {
	pool <- struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("event: handler panic",
					zap.String("event", e.Name()),
					zap.Error(fmt.Errorf("%v, stack: %s", r, debug.Stack())),
				)
			}

			cancel()
			<-pool
			b.wg.Done()
		}()

		if err := h(ctx, e); err != nil {
			zap.L().Error("event: handle event failed",
				zap.String("event", e.Name()),
				zap.Error(err),
			)
		}
	}()
}

// Stop rejects new events and waits for all running handlers to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	b.wg.Wait()
}
