package ledger_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/ledger/ledgertest"
)

func newService(t *testing.T) (*ledger.Service, *ledgertest.MemoryStore, *ledger.User, *ledger.User) {
	t.Helper()
	store := ledgertest.New()
	alice := store.AddUser("alice", 5000)
	bob := store.AddUser("bob", 3500)
	return ledger.NewService(store), store, alice, bob
}

func TestTransferPreservesTotal(t *testing.T) {
	svc, store, alice, bob := newService(t)
	ctx := context.Background()
	coffee := store.AddItem("coffee-run", 150)

	steps := []ledger.TransferRequest{
		{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 150, ItemID: ledger.ItemRef(coffee.ID)},
		{SenderID: bob.ID, ReceiverID: alice.ID, Amount: 1, ItemID: ledger.ItemRef(ledger.StealItemID)},
		{SenderID: bob.ID, ReceiverID: alice.ID, Amount: 3651},
		{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 42},
	}
	for _, req := range steps {
		_, err := svc.Transfer(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(8500), store.Balance(alice.ID)+store.Balance(bob.ID))
	}
	assert.Len(t, store.Transactions(), len(steps))
}

func TestTransferInsufficientIsAtomic(t *testing.T) {
	svc, store, alice, bob := newService(t)
	ctx := context.Background()

	_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: bob.ID, ReceiverID: alice.ID, Amount: 3501})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	assert.Equal(t, int64(5000), store.Balance(alice.ID))
	assert.Equal(t, int64(3500), store.Balance(bob.ID))
	assert.Empty(t, store.Transactions())
}

func TestTransferValidation(t *testing.T) {
	svc, _, alice, bob := newService(t)
	ctx := context.Background()

	_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: alice.ID, ReceiverID: alice.ID, Amount: 1})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Transfer(ctx, ledger.TransferRequest{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 0})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Transfer(ctx, ledger.TransferRequest{SenderID: alice.ID, ReceiverID: 999, Amount: 1})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.Transfer(ctx, ledger.TransferRequest{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 1, ItemID: ledger.ItemRef(77)})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransferResultCarriesNewBalances(t *testing.T) {
	svc, _, alice, bob := newService(t)

	res, err := svc.Transfer(context.Background(), ledger.TransferRequest{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(4800), res.Sender.Balance)
	assert.Equal(t, int64(3700), res.Receiver.Balance)
	assert.Nil(t, res.Transaction.ItemID)
	assert.False(t, res.Transaction.IsSteal())
}

func TestCatalogValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	cases := map[string]ledger.CatalogItemInput{
		"empty name":    {Name: "", Description: "d", Price: 10, Slug: "a"},
		"no desc":       {Name: "n", Description: " ", Price: 10, Slug: "a"},
		"zero price":    {Name: "n", Description: "d", Price: 0, Slug: "a"},
		"bad slug":      {Name: "n", Description: "d", Price: 10, Slug: "two words"},
		"double hyphen": {Name: "n", Description: "d", Price: 10, Slug: "a--b"},
	}
	for name, in := range cases {
		_, err := svc.CreateCatalogItem(ctx, in)
		assert.ErrorIs(t, err, common.ErrValidation, name)
	}

	it, err := svc.CreateCatalogItem(ctx, ledger.CatalogItemInput{Name: " Tea ", Description: "Hot", Price: 5, Slug: "Green-Tea"})
	require.NoError(t, err)
	assert.Equal(t, "green-tea", it.Slug)
	assert.Equal(t, "Tea", it.Name)

	_, err = svc.CreateCatalogItem(ctx, ledger.CatalogItemInput{Name: "Tea 2", Description: "Hot", Price: 6, Slug: "green-tea"})
	assert.ErrorIs(t, err, common.ErrConflict)

	found, err := svc.GetCatalogItemBySlug(ctx, "GREEN-TEA")
	require.NoError(t, err)
	assert.Equal(t, it.ID, found.ID)
}

func TestCatalogOrderedByPrice(t *testing.T) {
	svc, store, _, _ := newService(t)
	store.AddItem("dinner-takeout", 350)
	store.AddItem("coffee-run", 150)
	store.AddItem("game-choice", 250)

	items, err := svc.ListCatalogItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "coffee-run", items[0].Slug)
	assert.Equal(t, "game-choice", items[1].Slug)
	assert.Equal(t, "dinner-takeout", items[2].Slug)
}

func TestDeleteCatalogItem(t *testing.T) {
	svc, store, alice, bob := newService(t)
	ctx := context.Background()
	bought := store.AddItem("coffee-run", 150)
	unused := store.AddItem("movie-night", 200)

	_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 150, ItemID: ledger.ItemRef(bought.ID)})
	require.NoError(t, err)

	err = svc.DeleteCatalogItem(ctx, bought.ID)
	assert.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, svc.DeleteCatalogItem(ctx, unused.ID))
	items, err := svc.ListCatalogItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, bought.ID, items[0].ID)

	assert.ErrorIs(t, svc.DeleteCatalogItem(ctx, unused.ID), common.ErrNotFound)
}

func TestTransactionsNewestFirst(t *testing.T) {
	svc, _, alice, bob := newService(t)
	ctx := context.Background()

	for i := int64(1); i <= 7; i++ {
		_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: alice.ID, ReceiverID: bob.ID, Amount: i})
		require.NoError(t, err)
	}

	txs, err := svc.ListTransactionsForUser(ctx, bob.ID, 5)
	require.NoError(t, err)
	require.Len(t, txs, 5)
	assert.Equal(t, int64(7), txs[0].Amount)
	assert.Equal(t, int64(3), txs[4].Amount)
	assert.Equal(t, "alice", txs[0].SenderName)
	assert.Equal(t, "bob", txs[0].ReceiverName)

	all, err := svc.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestRulesParameters(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, ledger.RuleInput{Name: "Bargain floor", Description: "Minimum 1 MP", Type: "bargain"})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(rule.Parameters))
	assert.True(t, rule.IsActive)

	_, err = svc.CreateRule(ctx, ledger.RuleInput{Name: "x", Description: "y", Type: "z", Parameters: json.RawMessage(`{bad`)})
	assert.ErrorIs(t, err, common.ErrValidation)

	off := false
	_, err = svc.UpdateRule(ctx, rule.ID, ledger.RuleInput{
		Name: "Bargain floor", Description: "Minimum 1 MP", Type: "bargain",
		Parameters: json.RawMessage(`{"min":1}`), IsActive: &off,
	})
	require.NoError(t, err)

	active, err := svc.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListRules(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.JSONEq(t, `{"min":1}`, string(all[0].Parameters))
}

func TestLinkExternalID(t *testing.T) {
	svc, _, alice, bob := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.LinkExternalID(ctx, alice.ID, "1001"))
	u, err := svc.GetUserByExternalID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	assert.ErrorIs(t, svc.LinkExternalID(ctx, bob.ID, "1001"), common.ErrConflict)
	assert.ErrorIs(t, svc.LinkExternalID(ctx, bob.ID, "  "), common.ErrValidation)
}

// stealOnce: перевод 1 MP с пометкой steal, если её ещё не было за последний час.
func stealOnce(since time.Time) ledger.PlanFunc {
	return func(ctx context.Context, h ledger.History, first, second *ledger.User) (ledger.TransferRequest, error) {
		hit, err := h.HasTaggedTransactionSince(ctx, first.ID, ledger.StealItemID, since)
		if err != nil {
			return ledger.TransferRequest{}, err
		}
		if hit {
			return ledger.TransferRequest{}, common.Cooldown("cooldown")
		}
		return ledger.TransferRequest{
			SenderID: second.ID, ReceiverID: first.ID, Amount: 1, ItemID: ledger.ItemRef(ledger.StealItemID),
		}, nil
	}
}

func TestGuardedTransferPlanSeesCurrentState(t *testing.T) {
	svc, store, alice, bob := newService(t)
	ctx := context.Background()
	store.SetBalance(bob.ID, 1200)

	res, err := svc.GuardedTransfer(ctx, alice.ID, bob.ID,
		func(ctx context.Context, h ledger.History, first, second *ledger.User) (ledger.TransferRequest, error) {
			assert.Equal(t, alice.ID, first.ID)
			assert.Equal(t, int64(1200), second.Balance)
			return ledger.TransferRequest{SenderID: second.ID, ReceiverID: first.ID, Amount: second.Balance / 2}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Transaction.Amount)
	assert.Equal(t, int64(600), store.Balance(bob.ID))
	assert.Equal(t, int64(5600), store.Balance(alice.ID))
}

func TestGuardedTransferRejections(t *testing.T) {
	svc, store, alice, bob := newService(t)
	ctx := context.Background()

	_, err := svc.GuardedTransfer(ctx, alice.ID, bob.ID,
		func(context.Context, ledger.History, *ledger.User, *ledger.User) (ledger.TransferRequest, error) {
			return ledger.TransferRequest{}, common.Cooldown("not yet")
		})
	assert.ErrorIs(t, err, common.ErrCooldown)

	_, err = svc.GuardedTransfer(ctx, alice.ID, bob.ID,
		func(_ context.Context, _ ledger.History, first, _ *ledger.User) (ledger.TransferRequest, error) {
			return ledger.TransferRequest{SenderID: first.ID, ReceiverID: first.ID, Amount: 1}, nil
		})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.GuardedTransfer(ctx, alice.ID, bob.ID,
		func(_ context.Context, _ ledger.History, first, second *ledger.User) (ledger.TransferRequest, error) {
			return ledger.TransferRequest{SenderID: first.ID, ReceiverID: second.ID, Amount: 0}, nil
		})
	assert.ErrorIs(t, err, common.ErrValidation)

	carol := store.AddUser("carol", 10)
	_, err = svc.GuardedTransfer(ctx, alice.ID, bob.ID,
		func(_ context.Context, _ ledger.History, first, _ *ledger.User) (ledger.TransferRequest, error) {
			return ledger.TransferRequest{SenderID: first.ID, ReceiverID: carol.ID, Amount: 1}, nil
		})
	assert.Error(t, err)

	_, err = svc.GuardedTransfer(ctx, alice.ID, 999, stealOnce(time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Empty(t, store.Transactions())
	assert.Equal(t, int64(10), store.Balance(carol.ID))
}

func TestGuardedTransferSerializesChecks(t *testing.T) {
	svc, store, alice, bob := newService(t)
	since := time.Now().Add(-time.Hour)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		okay int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, second := alice.ID, bob.ID
			if i%2 == 1 {
				first, second = bob.ID, alice.ID
			}
			if _, err := svc.GuardedTransfer(context.Background(), first, second, stealOnce(since)); err == nil {
				mu.Lock()
				okay++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, okay)
	assert.Len(t, store.Transactions(), 1)
	assert.Equal(t, int64(8500), store.Balance(alice.ID)+store.Balance(bob.ID))
}
