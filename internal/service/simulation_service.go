package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
	"github.com/liliang-cn/chatsupervisor/internal/metrics"
	"github.com/liliang-cn/chatsupervisor/internal/repository"
	"github.com/liliang-cn/chatsupervisor/internal/supervisor"
)

var (
	frustratedQueries = []string{
		"Where is my order? I ordered 2 weeks ago!",
		"Your chatbot is useless! I need a refund NOW!",
		"This is stupid. Can I return this broken item?",
		"I was told I'd get free shipping but was charged $15. This is wrong!",
		"This is the worst customer service ever. I want my money back!",
	}

	normalQueries = []string{
		"What is your refund policy?",
		"Do you offer free shipping?",
		"Is the Smart Watch available?",
		"Can I return an item if I don't like it?",
		"How long does shipping take?",
	}

	hallucinatedResponses = []string{
		"Your order should arrive soon. We offer 60-day refunds on all items!",
		"Yes, you can return items within 90 days of purchase.",
		"Free shipping is available on all orders over $25.",
		"The Smart Watch is currently out of stock.",
		"We have a 45-day return policy for all products.",
	}

	correctResponses = []string{
		"We offer 30-day refunds on all items. Items must be unused and in original packaging.",
		"Yes, free shipping is available on orders over $50.",
		"The Smart Watch is available and costs $199.99.",
		"You can return items within 30 days of purchase.",
		"The Laptop Stand is currently unavailable.",
	}

	demoUserNames = []string{
		"Sarah Johnson",
		"Michael Chen",
		"Emma Davis",
		"James Wilson",
		"Lisa Anderson",
	}
)

const (
	turnSpacing   = 2 * time.Minute
	replyDelay    = 30 * time.Second
	minDemoTurns  = 2
	maxExtraTurns = 3
)

// SimulationService seeds the store with scored demo conversations
type SimulationService struct {
	engine     *supervisor.Engine
	aggregator *supervisor.Aggregator
	store      repository.ConversationStore
	pool       *ants.Pool
	logger     *zap.Logger
	now        func() time.Time
}

// NewSimulationService creates a new simulation service
func NewSimulationService(
	engine *supervisor.Engine,
	aggregator *supervisor.Aggregator,
	store repository.ConversationStore,
	pool *ants.Pool,
	logger *zap.Logger,
) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationService{
		engine:     engine,
		aggregator: aggregator,
		store:      store,
		pool:       pool,
		logger:     logger,
		now:        time.Now,
	}
}

// Generate builds count simulated conversations, most severe first.
// Conversation i draws from its own source seeded with seed+i, so a fixed
// seed gives the same conversations however the work is scheduled.
func (s *SimulationService) Generate(ctx context.Context, count int, seed int64) ([]*domain.Conversation, error) {
	if count <= 0 {
		return []*domain.Conversation{}, nil
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	now := s.now()
	conversations := make([]*domain.Conversation, count)

	build := func(i int) {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		userID := fmt.Sprintf("user-%d", i+1)
		conversations[i] = s.generateConversation(rng, demoUserNames[i%len(demoUserNames)], userID, now)
	}

	if s.pool == nil {
		for i := 0; i < count; i++ {
			build(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := 0; i < count; i++ {
			if err := ctx.Err(); err != nil {
				wg.Wait()
				return nil, err
			}
			i := i
			wg.Add(1)
			if err := s.pool.Submit(func() {
				defer wg.Done()
				build(i)
			}); err != nil {
				wg.Done()
				wg.Wait()
				return nil, fmt.Errorf("failed to submit simulation: %w", err)
			}
		}
		wg.Wait()
	}

	repository.SortBySeverity(conversations)
	return conversations, nil
}

// Seed generates count conversations and stores them
func (s *SimulationService) Seed(ctx context.Context, count int, seed int64) ([]*domain.Conversation, error) {
	conversations, err := s.Generate(ctx, count, seed)
	if err != nil {
		return nil, err
	}

	for _, c := range conversations {
		if err := s.store.Create(c); err != nil {
			return nil, fmt.Errorf("failed to store simulated conversation %s: %w", c.ID, err)
		}
		metrics.ConversationsCreated.WithLabelValues("simulated").Inc()
	}

	s.logger.Info("Seeded simulated conversations", zap.Int("count", len(conversations)))
	return conversations, nil
}

func (s *SimulationService) generateConversation(rng *rand.Rand, userName, userID string, now time.Time) *domain.Conversation {
	turns := minDemoTurns + rng.Intn(maxExtraTurns)
	messages := make([]*domain.Message, 0, turns*2)

	for i := 0; i < turns; i++ {
		var query string
		if rng.Float64() > 0.4 {
			query = frustratedQueries[rng.Intn(len(frustratedQueries))]
		} else {
			query = normalQueries[rng.Intn(len(normalQueries))]
		}

		var response string
		if rng.Float64() > 0.5 {
			response = hallucinatedResponses[rng.Intn(len(hallucinatedResponses))]
		} else {
			response = correctResponses[rng.Intn(len(correctResponses))]
		}

		evaluation := s.engine.Evaluate(query, response)
		asked := now.Add(-time.Duration(turns-i) * turnSpacing)

		messages = append(messages,
			&domain.Message{
				ID:        domain.MessageID(userID, i*2),
				Sender:    domain.SenderUser,
				Content:   query,
				Timestamp: asked,
			},
			&domain.Message{
				ID:        domain.MessageID(userID, i*2+1),
				Sender:    domain.SenderBot,
				Content:   response,
				Timestamp: asked.Add(replyDelay),
				RiskFlags: evaluation.Flags(),
			},
		)
	}

	return &domain.Conversation{
		ID:          userID,
		UserID:      userID,
		UserName:    userName,
		Status:      domain.StatusActive,
		RiskLevel:   s.aggregator.Fold(messages),
		Messages:    messages,
		LastUpdated: now,
	}
}
