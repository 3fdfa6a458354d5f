package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
	"github.com/liliang-cn/chatsupervisor/internal/knowledge"
	"github.com/liliang-cn/chatsupervisor/internal/repository"
	"github.com/liliang-cn/chatsupervisor/internal/supervisor"
)

func newSimulation(t *testing.T, withPool bool) (*SimulationService, *repository.ConversationRepository, *signalRecorder) {
	t.Helper()

	kb, err := knowledge.Default()
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	rec := &signalRecorder{}
	store := repository.NewConversationRepository()

	var svc *SimulationService
	if withPool {
		pool, err := NewWorkerPool(3, logger)
		require.NoError(t, err)
		t.Cleanup(pool.Release)
		svc = NewSimulationService(supervisor.NewEngine(kb), supervisor.NewAggregator(rec, logger), store, pool, logger)
	} else {
		svc = NewSimulationService(supervisor.NewEngine(kb), supervisor.NewAggregator(rec, logger), store, nil, logger)
	}
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc, store, rec
}

func TestGenerate_Shape(t *testing.T) {
	svc, _, _ := newSimulation(t, false)

	conversations, err := svc.Generate(context.Background(), 7, 42)
	require.NoError(t, err)
	require.Len(t, conversations, 7)

	agg := supervisor.NewAggregator(nil, nil)
	for i, c := range conversations {
		assert.Equal(t, domain.StatusActive, c.Status)
		assert.False(t, c.IsLive)
		assert.Equal(t, c.ID, c.UserID)
		assert.Contains(t, demoUserNames, c.UserName)

		require.GreaterOrEqual(t, len(c.Messages), 4)
		require.LessOrEqual(t, len(c.Messages), 8)
		require.Zero(t, len(c.Messages)%2)

		for j, m := range c.Messages {
			assert.Equal(t, domain.MessageID(c.ID, j), m.ID)
			if j%2 == 0 {
				assert.Equal(t, domain.SenderUser, m.Sender)
				assert.Nil(t, m.RiskFlags)
			} else {
				assert.Equal(t, domain.SenderBot, m.Sender)
				require.NotNil(t, m.RiskFlags)
				assert.Equal(t, replyDelay, m.Timestamp.Sub(c.Messages[j-1].Timestamp))
			}
		}

		assert.Equal(t, agg.Fold(c.Messages), c.RiskLevel)
		if i > 0 {
			assert.LessOrEqual(t, conversations[i-1].RiskLevel.Rank(), c.RiskLevel.Rank())
		}
	}
}

func TestGenerate_DeterministicAcrossScheduling(t *testing.T) {
	sequential, _, _ := newSimulation(t, false)
	pooled, _, _ := newSimulation(t, true)

	a, err := sequential.Generate(context.Background(), 10, 7)
	require.NoError(t, err)
	b, err := pooled.Generate(context.Background(), 10, 7)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerate_Zero(t *testing.T) {
	svc, _, _ := newSimulation(t, false)
	conversations, err := svc.Generate(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestSeed_StoresWithoutSignals(t *testing.T) {
	svc, store, rec := newSimulation(t, true)

	seeded, err := svc.Seed(context.Background(), 5, 99)
	require.NoError(t, err)
	require.Len(t, seeded, 5)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, c := range list {
		assert.Equal(t, seeded[i].ID, c.ID)
		assert.Equal(t, seeded[i].RiskLevel, c.RiskLevel)
	}
	assert.Empty(t, rec.signals(), "batch seeding does not raise live signals")

	_, err = svc.Seed(context.Background(), 5, 99)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest, "ids collide on reseed")
}
