package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/ledger/ledgertest"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
	"serotonyl.ru/minipoints-bot/internal/features/missions/missionstest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sent struct {
	chatID int64
	text   string
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) send(_ context.Context, chatID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{chatID: chatID, text: text})
}

func newServices(t *testing.T) (*ledgertest.MemoryStore, *missions.Service) {
	t.Helper()

	store := ledgertest.New()
	alice := store.AddUser("Alice", 5000)
	store.AddUser("Bob", 3500)
	require.NoError(t, store.LinkExternalID(context.Background(), alice.ID, "777"))

	svc := ledger.NewService(store)
	ms := missions.NewService(missionstest.New(), svc, time.UTC)
	_, err := ms.CreateMission(context.Background(), missions.NewMission{
		Name: "Compliment", Description: "Say something nice", Reward: 1,
	})
	require.NoError(t, err)
	return store, ms
}

func TestAssignDailyNotifiesLinkedUsers(t *testing.T) {
	store, ms := newServices(t)
	rec := &recorder{}
	s := NewScheduler("0 0 * * *", time.UTC, ms, ledger.NewService(store), rec.send)

	s.AssignDaily(context.Background())

	require.Len(t, rec.msgs, 1, "Bob не привязан к Telegram")
	assert.Equal(t, int64(777), rec.msgs[0].chatID)
	assert.Contains(t, rec.msgs[0].text, "Alice, your mission for today: Compliment")

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	for _, u := range users {
		a, err := ms.GetOrAssignMission(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Compliment", a.Mission.Name)
	}
}

func TestAssignDailyWithoutBot(t *testing.T) {
	store, ms := newServices(t)
	s := NewScheduler("0 0 * * *", time.UTC, ms, ledger.NewService(store), nil)

	assert.NotPanics(t, func() { s.AssignDaily(context.Background()) })
}

func TestAssignDailyStoreFailure(t *testing.T) {
	store, ms := newServices(t)
	rec := &recorder{}
	s := NewScheduler("0 0 * * *", time.UTC, ms, ledger.NewService(store), rec.send)

	store.Err = assert.AnError
	s.AssignDaily(context.Background())

	assert.Empty(t, rec.msgs)
}

func TestStartStop(t *testing.T) {
	_, ms := newServices(t)
	s := NewScheduler("0 0 * * *", time.UTC, ms, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	_, ms := newServices(t)
	s := NewScheduler("every day", time.UTC, ms, nil, nil)

	assert.Error(t, s.Start(context.Background()))
}
