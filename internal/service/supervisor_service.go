package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
	"github.com/liliang-cn/chatsupervisor/internal/metrics"
	"github.com/liliang-cn/chatsupervisor/internal/repository"
	"github.com/liliang-cn/chatsupervisor/internal/supervisor"
)

// SupervisorService scores completed turns and keeps conversation risk
// and status up to date
type SupervisorService struct {
	engine     *supervisor.Engine
	aggregator *supervisor.Aggregator
	store      repository.ConversationStore
	pool       *ants.Pool
	logger     *zap.Logger
	now        func() time.Time
}

// NewSupervisorService creates a new supervisor service. pool may be nil,
// in which case batch evaluation runs sequentially.
func NewSupervisorService(
	engine *supervisor.Engine,
	aggregator *supervisor.Aggregator,
	store repository.ConversationStore,
	pool *ants.Pool,
	logger *zap.Logger,
) *SupervisorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisorService{
		engine:     engine,
		aggregator: aggregator,
		store:      store,
		pool:       pool,
		logger:     logger,
		now:        time.Now,
	}
}

// NewWorkerPool creates the pool used for batch evaluation and seeding
func NewWorkerPool(size int, logger *zap.Logger) (*ants.Pool, error) {
	if size <= 0 {
		size = 1
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		logger.Error("Worker panic", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return pool, nil
}

// KnowledgeBase returns the ground truth in use
func (s *SupervisorService) KnowledgeBase() *domain.KnowledgeBase {
	return s.engine.KnowledgeBase()
}

// Evaluate scores a pair without recording it
func (s *SupervisorService) Evaluate(ctx context.Context, req *domain.EvaluateRequest) domain.EvaluationResult {
	return s.evaluate(req.UserQuery, req.BotResponse)
}

// EvaluateBatch scores several pairs, concurrently when a pool is set.
// Results keep request order.
func (s *SupervisorService) EvaluateBatch(ctx context.Context, items []domain.EvaluateRequest) ([]domain.EvaluationResult, error) {
	results := make([]domain.EvaluationResult, len(items))
	if s.pool == nil {
		for i, item := range items {
			results[i] = s.evaluate(item.UserQuery, item.BotResponse)
		}
		return results, nil
	}

	var wg sync.WaitGroup
	for i := range items {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		i := i
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			results[i] = s.evaluate(items[i].UserQuery, items[i].BotResponse)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit evaluation: %w", err)
		}
	}
	wg.Wait()

	return results, nil
}

func (s *SupervisorService) evaluate(userQuery, botResponse string) domain.EvaluationResult {
	start := time.Now()
	result := s.engine.Evaluate(userQuery, botResponse)
	metrics.ObserveEvaluation(result, time.Since(start).Seconds())
	return result
}

// CreateConversation opens a live conversation
func (s *SupervisorService) CreateConversation(ctx context.Context, req *domain.CreateConversationRequest) (*domain.Conversation, error) {
	conversation := &domain.Conversation{
		UserID:   req.UserID,
		UserName: req.UserName,
		IsLive:   true,
	}
	if err := s.store.Create(conversation); err != nil {
		return nil, err
	}
	metrics.ConversationsCreated.WithLabelValues("live").Inc()

	s.logger.Info("Conversation created",
		zap.String("conversation_id", conversation.ID),
		zap.String("user_name", conversation.UserName),
	)
	return conversation, nil
}

// GetConversation retrieves a conversation by ID
func (s *SupervisorService) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.store.Get(id)
}

// ListConversations returns conversations most severe first
func (s *SupervisorService) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	conversations, err := s.store.List()
	if err != nil {
		return nil, err
	}
	repository.SortBySeverity(conversations)
	return conversations, nil
}

// HandleTurn records one completed exchange: it evaluates the pair,
// appends both messages, escalates the conversation risk and raises an
// intervention signal when the bot message is CRITICAL or HALLUCINATION.
// All of it happens under the conversation's write lock, so risk updates
// follow message arrival order.
func (s *SupervisorService) HandleTurn(ctx context.Context, id string, req *domain.TurnRequest) (*domain.TurnResponse, error) {
	result := s.evaluate(req.UserQuery, req.BotResponse)

	var outcome supervisor.Outcome
	err := s.store.Update(id, func(c *domain.Conversation) error {
		now := s.now()

		c.Append(&domain.Message{
			Sender:    domain.SenderUser,
			Content:   req.UserQuery,
			Timestamp: now,
		}, now)

		bot := &domain.Message{
			Sender:    domain.SenderBot,
			Content:   req.BotResponse,
			Timestamp: now,
			RiskFlags: result.Flags(),
		}
		c.Append(bot, now)

		outcome = s.aggregator.Observe(c.ID, bot.ID, c.RiskLevel, result)
		c.RiskLevel = outcome.RiskLevel
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Intervention != nil {
		metrics.InterventionsTotal.WithLabelValues(string(outcome.Intervention.RiskLevel)).Inc()
	}

	return &domain.TurnResponse{
		ConversationID: id,
		Evaluation:     result,
		RiskLevel:      outcome.RiskLevel,
		Intervention:   outcome.Intervention != nil,
	}, nil
}

// TakeOver hands a conversation to a human operator. Repeating it is a
// no-op; there is no way back to active.
func (s *SupervisorService) TakeOver(ctx context.Context, id string) (*domain.Conversation, error) {
	changed, err := s.store.MarkIntervened(id)
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.TakeoversTotal.Inc()
		s.logger.Info("Conversation taken over", zap.String("conversation_id", id))
	}

	return s.store.Get(id)
}

// SelectConversation sets the dashboard selection
func (s *SupervisorService) SelectConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if err := s.store.Select(id); err != nil {
		return nil, err
	}
	return s.store.Get(id)
}

// SelectedConversation returns the dashboard selection
func (s *SupervisorService) SelectedConversation(ctx context.Context) (*domain.Conversation, error) {
	return s.store.Selected()
}

// GetStats summarizes the store
func (s *SupervisorService) GetStats(ctx context.Context) (*domain.Stats, error) {
	conversations, err := s.store.List()
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		TotalConversations: len(conversations),
		ByRiskLevel: map[domain.RiskLevel]int{
			domain.RiskHallucination: 0,
			domain.RiskCritical:      0,
			domain.RiskWarning:       0,
			domain.RiskSafe:          0,
		},
		ByStatus: map[domain.ConversationStatus]int{
			domain.StatusActive:     0,
			domain.StatusIntervened: 0,
			domain.StatusResolved:   0,
		},
	}
	for _, c := range conversations {
		stats.TotalMessages += len(c.Messages)
		stats.ByRiskLevel[c.RiskLevel]++
		stats.ByStatus[c.Status]++
	}

	return stats, nil
}
