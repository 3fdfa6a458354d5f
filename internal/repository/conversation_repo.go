package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

// ConversationStore is the contract the supervisor and the dashboard use
// to read and mutate conversations.
type ConversationStore interface {
	Create(conversation *domain.Conversation) error
	Get(id string) (*domain.Conversation, error)
	List() ([]*domain.Conversation, error)
	AppendMessage(id string, message *domain.Message) error
	UpdateRiskLevel(id string, level domain.RiskLevel) error
	MarkIntervened(id string) (bool, error)
	Update(id string, fn func(*domain.Conversation) error) error
	Select(id string) error
	Selected() (*domain.Conversation, error)
}

type conversationEntry struct {
	mu   sync.Mutex
	conv *domain.Conversation
}

// ConversationRepository keeps conversations in memory. Writes to one
// conversation are serialized by that conversation's lock; the map lock
// only guards membership.
type ConversationRepository struct {
	mu         sync.RWMutex
	entries    map[string]*conversationEntry
	order      []string
	selectedID string
	now        func() time.Time
}

var _ ConversationStore = (*ConversationRepository)(nil)

// NewConversationRepository creates an empty repository
func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		entries: make(map[string]*conversationEntry),
		now:     time.Now,
	}
}

// Create stores a new conversation. Missing fields get their initial
// values: a fresh id, status active, risk SAFE.
func (r *ConversationRepository) Create(conversation *domain.Conversation) error {
	if conversation == nil {
		return domain.ErrInvalidRequest
	}
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.UserID == "" {
		conversation.UserID = conversation.ID
	}
	if conversation.Status == "" {
		conversation.Status = domain.StatusActive
	}
	if conversation.RiskLevel == "" {
		conversation.RiskLevel = domain.RiskSafe
	}
	if conversation.Messages == nil {
		conversation.Messages = []*domain.Message{}
	}
	if conversation.LastUpdated.IsZero() {
		conversation.LastUpdated = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[conversation.ID]; ok {
		return fmt.Errorf("%w: conversation %s already exists", domain.ErrInvalidRequest, conversation.ID)
	}
	r.entries[conversation.ID] = &conversationEntry{conv: conversation.Clone()}
	r.order = append(r.order, conversation.ID)

	return nil
}

// Get retrieves a copy of a conversation by ID
func (r *ConversationRepository) Get(id string) (*domain.Conversation, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Clone(), nil
}

// List returns copies of all conversations in creation order
func (r *ConversationRepository) List() ([]*domain.Conversation, error) {
	r.mu.RLock()
	entries := make([]*conversationEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	conversations := make([]*domain.Conversation, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		conversations = append(conversations, e.conv.Clone())
		e.mu.Unlock()
	}
	return conversations, nil
}

// Update runs fn with exclusive access to the stored conversation.
// fn may mutate it in place; an error from fn is returned unchanged and
// any mutation already made stays.
func (r *ConversationRepository) Update(id string, fn func(*domain.Conversation) error) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.conv)
}

// AppendMessage adds a message and bumps lastUpdated
func (r *ConversationRepository) AppendMessage(id string, message *domain.Message) error {
	if message == nil {
		return domain.ErrInvalidRequest
	}
	return r.Update(id, func(c *domain.Conversation) error {
		c.Append(message, r.now())
		return nil
	})
}

// UpdateRiskLevel overwrites the conversation risk level
func (r *ConversationRepository) UpdateRiskLevel(id string, level domain.RiskLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", domain.ErrInvalidRequest, level)
	}
	return r.Update(id, func(c *domain.Conversation) error {
		c.RiskLevel = level
		c.LastUpdated = r.now()
		return nil
	})
}

// MarkIntervened moves an active conversation to intervened. It reports
// whether the status changed; repeating it is a no-op.
func (r *ConversationRepository) MarkIntervened(id string) (bool, error) {
	changed := false
	err := r.Update(id, func(c *domain.Conversation) error {
		if c.Status != domain.StatusActive {
			return nil
		}
		c.Status = domain.StatusIntervened
		c.LastUpdated = r.now()
		changed = true
		return nil
	})
	return changed, err
}

// Select records the conversation shown in the dashboard detail pane
func (r *ConversationRepository) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return domain.ErrNotFound
	}
	r.selectedID = id
	return nil
}

// Selected returns the selected conversation, defaulting to the first one
// created. It returns ErrNotFound when the store is empty.
func (r *ConversationRepository) Selected() (*domain.Conversation, error) {
	r.mu.RLock()
	id := r.selectedID
	if id == "" && len(r.order) > 0 {
		id = r.order[0]
	}
	r.mu.RUnlock()

	if id == "" {
		return nil, domain.ErrNotFound
	}
	return r.Get(id)
}

func (r *ConversationRepository) entry(id string) (*conversationEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

// SortBySeverity orders conversations most severe first, most recently
// updated first within a level.
func SortBySeverity(conversations []*domain.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if a.RiskLevel.Rank() != b.RiskLevel.Rank() {
			return a.RiskLevel.Rank() < b.RiskLevel.Rank()
		}
		return a.LastUpdated.After(b.LastUpdated)
	})
}
