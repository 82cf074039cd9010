package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/util"
)

// Keys of the redis section of the configuration.
const (
	paramRedisPassword   = "password"
	paramRedisDB         = "db"
	paramRedisMaxRetries = "max-retries"
)

// RedisClient is the subset of *redis.Client used by the Redis transport.
type RedisClient interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis is a Transport which delivers payloads over Redis PubSub, one
// channel per node address.  PubSub is fire-and-forget, so are sends: a
// payload published while nobody is subscribed is lost.
//
// Note that we're not trying to solve the CAP theorem here, if Redis has a bad time, then so do we.
type Redis struct {
	logger     logrus.FieldLogger
	client     RedisClient
	namespace  string
	bufferSize int

	mu      sync.Mutex
	closed  bool
	subs    map[gossipmember.Address]*redis.PubSub
	inbound map[gossipmember.Address]chan []byte
	wg      wait.Group
}

var _ gossipmember.Transport = (*Redis)(nil)

// NewRedis creates a Redis transport publishing on channels prefixed with namespace.
func NewRedis(logger logrus.FieldLogger, client RedisClient, namespace string, bufferSize int) *Redis {
	return &Redis{
		logger:     logger,
		client:     client,
		namespace:  namespace,
		bufferSize: bufferSize,
		subs:       make(map[gossipmember.Address]*redis.PubSub),
		inbound:    make(map[gossipmember.Address]chan []byte),
	}
}

// NewRedisOptionsFromViper builds client options from redis-addr and the
// optional redis section of v.  Values of the section can also be set from
// the environment, e.g. GMB_REDIS_PASSWORD.
func NewRedisOptionsFromViper(v *viper.Viper) *redis.Options {
	section := util.GetSubViper(v, "redis")
	return &redis.Options{
		Addr:       v.GetString(gossipmember.ParamRedisAddr),
		Password:   section.GetString(paramRedisPassword),
		DB:         section.GetInt(paramRedisDB),
		MaxRetries: section.GetInt(paramRedisMaxRetries),
	}
}

// Channel returns the PubSub channel name for addr.
func (r *Redis) Channel(addr gossipmember.Address) string {
	return fmt.Sprintf("%s:%d:%d", r.namespace, addr.ID, addr.Port)
}

func (r *Redis) Send(ctx context.Context, from, to gossipmember.Address, payload []byte) error {
	return r.client.Publish(ctx, r.Channel(to), payload).Err()
}

// Listen subscribes to the channel of addr and waits for Redis to confirm
// the subscription.  Payloads published after Listen returns are queued for
// Inbound.  Listening on an address twice is a no-op.
func (r *Redis) Listen(ctx context.Context, addr gossipmember.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.subs[addr]; ok {
		return nil
	}

	ps := r.client.Subscribe(ctx, r.Channel(addr))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.Channel(addr), err)
	}

	ch := r.queue(addr)
	r.subs[addr] = ps
	psChan := ps.Channel() // Closed when pubsub is Closed
	logger := r.logger.WithField("channel", r.Channel(addr))
	r.wg.Start(func() {
		defer close(ch)
		for msg := range psChan {
			select {
			case ch <- []byte(msg.Payload):
			default:
				logger.Debug("Inbound queue full, dropping message")
			}
		}
	})
	return nil
}

// queue must be called with mu held.
func (r *Redis) queue(addr gossipmember.Address) chan []byte {
	ch, ok := r.inbound[addr]
	if !ok {
		ch = make(chan []byte, r.bufferSize)
		r.inbound[addr] = ch
	}
	return ch
}

// Inbound returns the queue for addr, subscribing first if Listen has not
// been called for it.  A failure to subscribe is logged, the queue then
// stays empty.
func (r *Redis) Inbound(addr gossipmember.Address) <-chan []byte {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Listen(ctx, addr); err != nil {
		r.logger.WithError(err).Warn("Failed to listen for inbound messages")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue(addr)
}

// Close unsubscribes every address and waits for the inbound queues to close.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var err error
	for _, ps := range r.subs {
		err = multierr.Append(err, ps.Close())
	}
	r.mu.Unlock()

	r.wg.Wait()
	return err
}
