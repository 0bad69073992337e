// Package events carries auth state changes between the auth client and the
// session store, in process or across processes over Redis.
package events

import (
	"context"
	"sync"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
)

var (
	_ interfaces.AuthEventSource    = (*Broker)(nil)
	_ interfaces.AuthEventPublisher = (*Broker)(nil)
)

// Broker fans auth events out to in-process subscribers. Delivery is
// synchronous and in publish order.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]func(models.AuthEvent)
	nextID uint64
	logger *common.Logger
}

// NewBroker creates an empty broker
func NewBroker(logger *common.Logger) *Broker {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Broker{subs: map[uint64]func(models.AuthEvent){}, logger: logger}
}

// Subscribe registers fn until the returned func is called
func (b *Broker) Subscribe(_ context.Context, fn func(models.AuthEvent)) (func(), error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}, nil
}

// Publish delivers ev to every subscriber. A panicking subscriber is logged
// and does not stop delivery to the others.
func (b *Broker) Publish(_ context.Context, ev models.AuthEvent) error {
	b.mu.RLock()
	fns := make([]func(models.AuthEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, ev)
	}
	return nil
}

func (b *Broker) deliver(fn func(models.AuthEvent), ev models.AuthEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("type", string(ev.Type)).Msgf("Auth event subscriber panicked: %v", r)
		}
	}()
	fn(ev)
}

// Subscribers returns the number of live subscriptions
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close is a no-op; it lets Broker stand in for RedisBus
func (b *Broker) Close() error {
	return nil
}
