package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
)

const (
	DefaultRedisAddr = "localhost:6379"
	DefaultChannel   = "tradeonly:auth"
)

var (
	_ interfaces.AuthEventSource    = (*RedisBus)(nil)
	_ interfaces.AuthEventPublisher = (*RedisBus)(nil)
)

// RedisBus publishes auth events as JSON on a Redis pub/sub channel so a
// login in one process reaches a running bridge in another.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *common.Logger
}

// NewRedisBus creates a bus on addr/channel. Empty values use the defaults.
func NewRedisBus(addr, channel string, logger *common.Logger) *RedisBus {
	if addr == "" {
		addr = DefaultRedisAddr
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &RedisBus{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		logger:  logger,
	}
}

// Ping checks the connection
func (r *RedisBus) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Publish sends ev to the channel
func (r *RedisBus) Publish(ctx context.Context, ev models.AuthEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal auth event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until the returned func is called. The
// subscription is confirmed before Subscribe returns.
func (r *RedisBus) Subscribe(ctx context.Context, fn func(models.AuthEvent)) (func(), error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var ev models.AuthEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed auth event")
				continue
			}
			r.deliver(fn, ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			pubsub.Close()
			<-done
		})
	}, nil
}

func (r *RedisBus) deliver(fn func(models.AuthEvent), ev models.AuthEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("type", string(ev.Type)).Msgf("Auth event subscriber panicked: %v", rec)
		}
	}()
	fn(ev)
}

// Close closes the Redis client
func (r *RedisBus) Close() error {
	return r.client.Close()
}
