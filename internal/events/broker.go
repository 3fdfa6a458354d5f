// Package events delivers intervention signals to dashboard subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

// Broker fans intervention signals out to in-process subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the
// signal and the drop is logged.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan domain.Intervention
	nextID      uint64
	bufferSize  int
	logger      *zap.Logger
}

// NewBroker creates a broker whose subscriptions buffer bufferSize signals
func NewBroker(bufferSize int, logger *zap.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subscribers: make(map[uint64]chan domain.Intervention),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan domain.Intervention, func()) {
	ch := make(chan domain.Intervention, b.bufferSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Notify publishes an intervention to every subscriber
func (b *Broker) Notify(intervention domain.Intervention) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- intervention:
		default:
			b.logger.Warn("Dropped intervention for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.String("conversation_id", intervention.ConversationID),
			)
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Notifier is anything that accepts intervention signals
type Notifier interface {
	Notify(intervention domain.Intervention)
}

// Fanout forwards each signal to all of its notifiers in order
type Fanout []Notifier

// Notify calls every notifier
func (f Fanout) Notify(intervention domain.Intervention) {
	for _, n := range f {
		if n != nil {
			n.Notify(intervention)
		}
	}
}
