package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

// RedisConfig configures the Redis fan-out
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Timeout  time.Duration
}

// RedisPublisher forwards intervention signals to a Redis pub/sub channel
// so dashboards running in other processes receive them too. Publishing
// happens on a background goroutine in signal order; Notify never waits
// on the network.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan domain.Intervention
	done   chan struct{}
}

const redisQueueSize = 256

// NewRedisClient opens a client and checks the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// NewRedisPublisher wraps an existing client
func NewRedisPublisher(client *redis.Client, channel string, timeout time.Duration, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = "supervisor:interventions"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan domain.Intervention, redisQueueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Channel returns the pub/sub channel name
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Notify queues the signal for publishing. A full queue drops it.
func (p *RedisPublisher) Notify(intervention domain.Intervention) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	select {
	case p.queue <- intervention:
	default:
		p.logger.Warn("Dropped intervention, redis queue full",
			zap.String("conversation_id", intervention.ConversationID),
		)
	}
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for intervention := range p.queue {
		p.publish(intervention)
	}
}

func (p *RedisPublisher) publish(intervention domain.Intervention) {
	data, err := json.Marshal(intervention)
	if err != nil {
		p.logger.Error("Failed to encode intervention", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish intervention",
			zap.String("channel", p.channel),
			zap.String("conversation_id", intervention.ConversationID),
			zap.Error(err),
		)
	}
}

// Close drains queued signals and closes the underlying client
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	return p.client.Close()
}
