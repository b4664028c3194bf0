package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// runConcurrently выполняет команды одновременно и возвращает результаты по порядку.
func (f *fixture) runConcurrently(text string, users ...*ledger.User) []*engine.Result {
	results := make([]*engine.Result, len(users))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = f.eng.Execute(context.Background(), text, u)
		}()
	}
	close(start)
	wg.Wait()
	for _, res := range results {
		require.NotNil(f.t, res)
	}
	return results
}

func countType(results []*engine.Result, typ string) int {
	n := 0
	for _, res := range results {
		if res.Type == typ {
			n++
		}
	}
	return n
}

func TestStealConcurrentCallsRespectCooldown(t *testing.T) {
	f := newFixture(t)
	before := f.total()

	var users []*ledger.User
	for i := 0; i < 10; i++ {
		users = append(users, f.alice, f.bob)
	}
	results := f.runConcurrently("steal", users...)

	assert.Equal(t, 1, countType(results, engine.TypeStealResult))
	for _, res := range results {
		if res.Type != engine.TypeStealResult {
			assert.Contains(t, res.Message(), "once every 2 hours")
		}
	}
	txs := f.store.Transactions()
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsSteal())
	assert.Equal(t, before, f.total())
}

func TestRobinHoodConcurrentCallsTakeHalfOnce(t *testing.T) {
	f := newFixture(t)
	f.store.SetBalance(f.alice.ID, 0)
	f.store.SetBalance(f.bob.ID, 1000)

	results := f.runConcurrently("robinhood", f.alice, f.alice, f.alice, f.alice, f.alice, f.alice)

	assert.Equal(t, 1, countType(results, engine.TypeRobinHoodResult))
	assert.Equal(t, int64(500), f.store.Balance(f.bob.ID))
	assert.Equal(t, int64(500), f.store.Balance(f.alice.ID))
	assert.Len(t, f.store.Transactions(), 1)
}

// interceptCounterparty выполняет hook один раз, уже после того как
// движок прочитал вызывающего, но до перевода.
type interceptCounterparty struct {
	inner engine.Counterparty
	once  sync.Once
	hook  func()
}

func (c *interceptCounterparty) Resolve(ctx context.Context, caller *ledger.User) (*ledger.User, error) {
	c.once.Do(c.hook)
	return c.inner.Resolve(ctx, caller)
}

func TestStealSeesStealCommittedAfterCommandStarted(t *testing.T) {
	var f *fixture
	cp := &interceptCounterparty{hook: func() {
		_, err := f.store.Transfer(context.Background(), ledger.TransferRequest{
			SenderID: f.bob.ID, ReceiverID: f.alice.ID, Amount: 1, ItemID: ledger.ItemRef(ledger.StealItemID),
		})
		require.NoError(t, err)
	}}
	f = newFixture(t, engine.WithCounterparty(cp))
	cp.inner = engine.FirstOtherUser{Users: f.store}

	res := f.run(f.alice, "steal")
	assert.Equal(t, engine.TypeError, res.Type)
	assert.Contains(t, res.Message(), "once every 2 hours")
	assert.Len(t, f.store.Transactions(), 1)
}

func TestRobinHoodUsesBalanceAtTransferTime(t *testing.T) {
	var f *fixture
	cp := &interceptCounterparty{hook: func() {
		f.store.SetBalance(f.alice.ID, 8000)
	}}
	f = newFixture(t, engine.WithCounterparty(cp))
	cp.inner = engine.FirstOtherUser{Users: f.store}

	// Bob видел у Alice 5000, но к моменту перевода у неё 8000
	res := f.run(f.bob, "robinhood")
	require.Equal(t, engine.TypeRobinHoodResult, res.Type, res.Message())
	p := res.Content.(*engine.RobinHoodPayload)
	assert.Equal(t, int64(4000), p.Amount)
	assert.Equal(t, int64(4000), p.VictimBalance)
	assert.Equal(t, int64(4000), f.store.Balance(f.alice.ID))
	assert.Equal(t, int64(7500), f.store.Balance(f.bob.ID))
}

func TestRobinHoodRichCheckUsesCurrentBalances(t *testing.T) {
	var f *fixture
	cp := &interceptCounterparty{hook: func() {
		f.store.SetBalance(f.bob.ID, 6000)
	}}
	f = newFixture(t, engine.WithCounterparty(cp))
	cp.inner = engine.FirstOtherUser{Users: f.store}

	res := f.run(f.bob, "robinhood")
	assert.Contains(t, res.Message(), "only steals from the rich")
	assert.Empty(t, f.store.Transactions())
}
