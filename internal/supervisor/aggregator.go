package supervisor

import (
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

// Notifier receives intervention signals
type Notifier interface {
	Notify(intervention domain.Intervention)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(domain.Intervention)

// Notify calls f
func (f NotifierFunc) Notify(i domain.Intervention) { f(i) }

// Aggregator folds message evaluations into a conversation risk level and
// raises intervention signals for live conversations. It never changes a
// conversation's status; take-over is an explicit external action.
type Aggregator struct {
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator creates an aggregator. A nil notifier drops signals.
func NewAggregator(notifier Notifier, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Fold scans a whole message sequence and returns the most severe risk
// level among its bot messages.
func (a *Aggregator) Fold(messages []*domain.Message) domain.RiskLevel {
	level := domain.RiskSafe
	for _, m := range messages {
		if m == nil || m.Sender != domain.SenderBot {
			continue
		}
		level = domain.MaxRisk(level, m.RiskFlags.RiskLevel())
	}
	return level
}

// Escalate returns the conversation level after one more evaluation.
// It never downgrades.
func (a *Aggregator) Escalate(current domain.RiskLevel, result domain.EvaluationResult) domain.RiskLevel {
	return domain.MaxRisk(current, result.RiskLevel)
}

// Outcome is the result of observing one live bot message
type Outcome struct {
	RiskLevel    domain.RiskLevel
	Intervention *domain.Intervention
}

// Observe escalates the conversation level for a live bot message and emits
// one intervention signal when the message itself is CRITICAL or
// HALLUCINATION.
func (a *Aggregator) Observe(conversationID, messageID string, current domain.RiskLevel, result domain.EvaluationResult) Outcome {
	out := Outcome{RiskLevel: a.Escalate(current, result)}

	if out.RiskLevel != current {
		a.logger.Info("Conversation risk escalated",
			zap.String("conversation_id", conversationID),
			zap.String("from", string(current)),
			zap.String("to", string(out.RiskLevel)),
		)
	}

	if !result.RiskLevel.RequiresIntervention() {
		return out
	}

	intervention := domain.Intervention{
		ConversationID: conversationID,
		MessageID:      messageID,
		RiskLevel:      result.RiskLevel,
		Reason:         result.Reason,
		RaisedAt:       a.now(),
	}
	out.Intervention = &intervention

	a.logger.Warn("Intervention requested",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", messageID),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.String("reason", result.Reason),
	)

	if a.notifier != nil {
		a.notifier.Notify(intervention)
	}

	return out
}
