package repository

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

func newTestRepo() (*ConversationRepository, *time.Time) {
	r := NewConversationRepository()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestCreate_Defaults(t *testing.T) {
	r, now := newTestRepo()

	c := &domain.Conversation{UserName: "Sarah Johnson"}
	require.NoError(t, r.Create(c))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, c.ID, c.UserID)
	assert.Equal(t, domain.StatusActive, c.Status)
	assert.Equal(t, domain.RiskSafe, c.RiskLevel)
	assert.Equal(t, *now, c.LastUpdated)

	got, err := r.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah Johnson", got.UserName)
	assert.Empty(t, got.Messages)
}

func TestCreate_Duplicate(t *testing.T) {
	r, _ := newTestRepo()
	require.NoError(t, r.Create(&domain.Conversation{ID: "c1"}))
	err := r.Create(&domain.Conversation{ID: "c1"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.ErrorIs(t, r.Create(nil), domain.ErrInvalidRequest)
}

func TestUnknownConversation(t *testing.T) {
	r, _ := newTestRepo()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.AppendMessage("missing", &domain.Message{}), domain.ErrNotFound)
	assert.ErrorIs(t, r.UpdateRiskLevel("missing", domain.RiskCritical), domain.ErrNotFound)
	_, err = r.MarkIntervened("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.Select("missing"), domain.ErrNotFound)

	list, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, list, "no conversation is created implicitly")
}

func TestAppendMessage(t *testing.T) {
	r, now := newTestRepo()
	require.NoError(t, r.Create(&domain.Conversation{ID: "c1"}))

	*now = now.Add(time.Minute)
	require.NoError(t, r.AppendMessage("c1", &domain.Message{Sender: domain.SenderUser, Content: "hi"}))
	require.NoError(t, r.AppendMessage("c1", &domain.Message{Sender: domain.SenderBot, Content: "hello"}))

	got, err := r.Get("c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "msg-c1-0", got.Messages[0].ID)
	assert.Equal(t, "msg-c1-1", got.Messages[1].ID)
	assert.Equal(t, *now, got.Messages[1].Timestamp)
	assert.Equal(t, *now, got.LastUpdated)

	assert.ErrorIs(t, r.AppendMessage("c1", nil), domain.ErrInvalidRequest)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r, _ := newTestRepo()
	require.NoError(t, r.Create(&domain.Conversation{ID: "c1"}))

	got, err := r.Get("c1")
	require.NoError(t, err)
	got.RiskLevel = domain.RiskHallucination
	got.Messages = append(got.Messages, &domain.Message{})

	again, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskSafe, again.RiskLevel)
	assert.Empty(t, again.Messages)
}

func TestUpdateRiskLevel(t *testing.T) {
	r, _ := newTestRepo()
	require.NoError(t, r.Create(&domain.Conversation{ID: "c1"}))

	require.NoError(t, r.UpdateRiskLevel("c1", domain.RiskCritical))
	got, _ := r.Get("c1")
	assert.Equal(t, domain.RiskCritical, got.RiskLevel)

	assert.ErrorIs(t, r.UpdateRiskLevel("c1", "BOGUS"), domain.ErrInvalidRequest)
}

func TestMarkIntervened_Idempotent(t *testing.T) {
	r, _ := newTestRepo()
	require.NoError(t, r.Create(&domain.Conversation{ID: "c1"}))

	changed, err := r.MarkIntervened("c1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.MarkIntervened("c1")
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := r.Get("c1")
	assert.Equal(t, domain.StatusIntervened, got.Status)
}

func TestMarkIntervened_ResolvedIsNoop(t *testing.T) {
	r, _ := newTestRepo()
	require.NoError(t, r.Create(&domain.Conversation{ID: "c1", Status: domain.StatusResolved}))

	changed, err := r.MarkIntervened("c1")
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := r.Get("c1")
	assert.Equal(t, domain.StatusResolved, got.Status)
}

func TestSelect(t *testing.T) {
	r, _ := newTestRepo()

	_, err := r.Selected()
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.Create(&domain.Conversation{ID: "c1"}))
	require.NoError(t, r.Create(&domain.Conversation{ID: "c2"}))

	got, err := r.Selected()
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	require.NoError(t, r.Select("c2"))
	got, err = r.Selected()
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ID)
}

func TestList_CreationOrder(t *testing.T) {
	r, _ := newTestRepo()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Create(&domain.Conversation{ID: fmt.Sprintf("c%d", i)}))
	}

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, c := range list {
		assert.Equal(t, fmt.Sprintf("c%d", i), c.ID)
	}
}

func TestSortBySeverity(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	list := []*domain.Conversation{
		{ID: "safe", RiskLevel: domain.RiskSafe, LastUpdated: base},
		{ID: "crit-old", RiskLevel: domain.RiskCritical, LastUpdated: base},
		{ID: "hall", RiskLevel: domain.RiskHallucination, LastUpdated: base},
		{ID: "warn", RiskLevel: domain.RiskWarning, LastUpdated: base},
		{ID: "crit-new", RiskLevel: domain.RiskCritical, LastUpdated: base.Add(time.Hour)},
	}

	SortBySeverity(list)

	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"hall", "crit-new", "crit-old", "warn", "safe"}, ids)
}

func TestConcurrentAppends(t *testing.T) {
	r := NewConversationRepository()
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		require.NoError(t, r.Create(&domain.Conversation{ID: id}))
	}

	const perConversation = 50
	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < perConversation; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_ = r.AppendMessage(id, &domain.Message{Sender: domain.SenderBot})
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		got, err := r.Get(id)
		require.NoError(t, err)
		require.Len(t, got.Messages, perConversation)
		seen := make(map[string]bool)
		for _, m := range got.Messages {
			assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
			seen[m.ID] = true
		}
	}
}
