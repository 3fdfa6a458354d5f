package events

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

func sample(id string) domain.Intervention {
	return domain.Intervention{
		ConversationID: id,
		MessageID:      "msg-" + id + "-1",
		RiskLevel:      domain.RiskHallucination,
		Reason:         "Incorrect refund policy: Bot stated 60 days, but policy is 30 days",
	}
}

func TestBroker_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroker(4, zaptest.NewLogger(t))

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()
	assert.Equal(t, 2, b.Subscribers())

	b.Notify(sample("c1"))

	assert.Equal(t, "c1", (<-ch1).ConversationID)
	assert.Equal(t, "c1", (<-ch2).ConversationID)
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	b := NewBroker(1, nil)

	ch, cancel := b.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	// Publishing with no subscribers is fine.
	b.Notify(sample("c1"))
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(1, zaptest.NewLogger(t))
	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.Notify(sample("c1"))
		b.Notify(sample("c2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full subscriber")
	}

	assert.Equal(t, "c1", (<-ch).ConversationID)
}

type recorder struct {
	got []domain.Intervention
}

func (r *recorder) Notify(i domain.Intervention) { r.got = append(r.got, i) }

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := Fanout{a, nil, b}

	f.Notify(sample("c1"))

	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
	assert.Equal(t, "c1", b.got[0].ConversationID)
}

func setupTestRedis(t *testing.T) *redis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, RedisConfig{Addr: "localhost:6379", DB: 15})
	if err != nil {
		t.Skip("Redis unavailable, skipping")
	}
	return client
}

func TestRedisPublisher_Notify(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	p := NewRedisPublisher(client, "test:supervisor:interventions", time.Second, zaptest.NewLogger(t))

	ctx := context.Background()
	sub := client.Subscribe(ctx, p.Channel())
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p.Notify(sample("c9"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got domain.Intervention
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "c9", got.ConversationID)
	assert.Equal(t, domain.RiskHallucination, got.RiskLevel)
}

func TestNewRedisPublisher_Defaults(t *testing.T) {
	p := NewRedisPublisher(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", 0, nil)
	defer func() { _ = p.Close() }()

	assert.Equal(t, "supervisor:interventions", p.Channel())
	assert.Equal(t, 2*time.Second, p.timeout)
}

func TestRedisPublisher_NotifyDoesNotWaitOnNetwork(t *testing.T) {
	// A listener that never answers makes every publish run to its timeout.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client := redis.NewClient(&redis.Options{Addr: ln.Addr().String(), MaxRetries: -1})
	p := NewRedisPublisher(client, "", 200*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	for i := 0; i < 3; i++ {
		p.Notify(sample("slow"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, p.Close())
	p.Notify(sample("after-close"))
}
