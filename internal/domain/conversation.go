package domain

import (
	"fmt"
	"time"
)

// ConversationStatus is the intervention state of a conversation
type ConversationStatus string

const (
	StatusActive     ConversationStatus = "active"
	StatusIntervened ConversationStatus = "intervened"
	StatusResolved   ConversationStatus = "resolved"
)

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Conversation represents a supervised chat between a user and the bot
type Conversation struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	UserName    string             `json:"user_name"`
	Status      ConversationStatus `json:"status"`
	RiskLevel   RiskLevel          `json:"risk_level"`
	Messages    []*Message         `json:"messages"`
	LastUpdated time.Time          `json:"last_updated"`
	IsLive      bool               `json:"is_live"`
}

// Clone returns a copy that shares no slices with c. Messages are
// immutable so the pointers themselves are shared.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]*Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// Append adds message to the conversation, filling in its id and
// timestamp when missing, and bumps LastUpdated to now. The caller must
// hold exclusive access to c.
func (c *Conversation) Append(message *Message, now time.Time) {
	if message.ID == "" {
		message.ID = MessageID(c.ID, len(c.Messages))
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = now
	}
	stored := *message
	c.Messages = append(c.Messages, &stored)
	c.LastUpdated = now
}

// MessageID builds the id of the n-th message of a conversation
func MessageID(conversationID string, n int) string {
	return fmt.Sprintf("msg-%s-%d", conversationID, n)
}

// Message represents a chat message
type Message struct {
	ID        string     `json:"id"`
	Sender    Sender     `json:"sender"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	RiskFlags *RiskFlags `json:"risk_flags,omitempty"`
}

// RiskFlags is the part of an evaluation kept on a bot message
type RiskFlags struct {
	Sentiment     Sentiment `json:"sentiment,omitempty"`
	Hallucination bool      `json:"hallucination"`
	Reason        string    `json:"reason,omitempty"`
}

// RiskLevel derives the risk level the flags were produced with
func (f *RiskFlags) RiskLevel() RiskLevel {
	switch {
	case f == nil:
		return RiskSafe
	case f.Hallucination:
		return RiskHallucination
	case f.Sentiment == SentimentNegative:
		return RiskCritical
	default:
		return RiskSafe
	}
}

// CreateConversationRequest is the request to open a live conversation
type CreateConversationRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name" binding:"required"`
}

// TurnRequest carries one completed (query, response) exchange
type TurnRequest struct {
	UserQuery   string `json:"user_query"`
	BotResponse string `json:"bot_response"`
}

// TurnResponse is returned after a turn has been scored and recorded
type TurnResponse struct {
	ConversationID string           `json:"conversation_id"`
	Evaluation     EvaluationResult `json:"evaluation"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	Intervention   bool             `json:"intervention"`
}

// SelectRequest changes the dashboard selection
type SelectRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

// Intervention is the signal raised for a CRITICAL or HALLUCINATION bot message
type Intervention struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Reason         string    `json:"reason"`
	RaisedAt       time.Time `json:"raised_at"`
}

// Stats represents dashboard statistics
type Stats struct {
	TotalConversations int                        `json:"total_conversations"`
	TotalMessages      int                        `json:"total_messages"`
	ByRiskLevel        map[RiskLevel]int          `json:"by_risk_level"`
	ByStatus           map[ConversationStatus]int `json:"by_status"`
}
