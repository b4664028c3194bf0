package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

func TestRenderError(t *testing.T) {
	r := NewRenderer(time.UTC)
	assert.Equal(t, "Item \"yacht\" not found", r.Render(engine.ErrorResult("Item \"yacht\" not found")))
	assert.Equal(t, engine.GenericErrorMessage, r.Render(nil))
}

func TestRenderResults(t *testing.T) {
	r := NewRenderer(time.UTC)
	coffee := &ledger.CatalogItem{ID: 1, Name: "Coffee Run", Slug: "coffee-run", Price: 150, Description: "Grab coffee"}

	tests := []struct {
		name string
		res  *engine.Result
		want string
	}{
		{
			name: "balance",
			res:  &engine.Result{Type: engine.TypeBalance, Content: &engine.BalancePayload{User: &ledger.User{DisplayName: "Alice", Balance: 4850}}},
			want: "💰 Alice, your balance is 4 850 MP",
		},
		{
			name: "purchase",
			res: &engine.Result{Type: engine.TypePurchaseSuccess, Content: &engine.PurchasePayload{Purchase: engine.Purchase{
				Item: coffee, Cost: 150, NewBalance: 4850, Recipient: "Bob",
			}}},
			want: "✅ You bought Coffee Run for 150 MP. Bob received the points.\nYour new balance: 4 850 MP",
		},
		{
			name: "bargain",
			res: &engine.Result{Type: engine.TypeBargainInitiated, Content: &engine.BargainInitiatedPayload{Offer: engine.BargainOffer{
				Item: coffee, OfferedPrice: 100, OriginalPrice: 150, Discount: 50, DiscountPercentage: 33,
				Offerer: "Alice", Recipient: "Bob",
			}}},
			want: "🤝 Alice offers 100 MP for Coffee Run (list price 150 MP, 33% off).\nBob, reply !accept or !reject.",
		},
		{
			name: "steal caught",
			res: &engine.Result{Type: engine.TypeStealResult, Content: &engine.StealPayload{
				Success: false, Amount: 1, Opponent: "Bob", NewBalance: 4999,
			}},
			want: "🚨 Caught! You paid Bob 1 MP.\nYour new balance: 4 999 MP",
		},
		{
			name: "empty catalogue",
			res:  &engine.Result{Type: engine.TypeCatalogue, Content: &engine.CataloguePayload{}},
			want: "🛍 The catalogue is empty",
		},
		{
			name: "reward cancelled",
			res: &engine.Result{Type: engine.TypeMissionCompleted, Content: &engine.MissionCompletedPayload{
				Mission:         &missions.Assignment{Mission: missions.Mission{Name: "Compliment"}},
				RewardCancelled: true,
			}},
			want: "🎉 Mission completed: Compliment\nEveryone completed their missions today, so the rewards cancel out.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Render(tt.res))
		})
	}
}

func TestRenderTransactionsRelativeToViewer(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	r := NewRenderer(moscow)
	name := "Coffee Run"
	steal := ledger.StealItemID

	res := &engine.Result{Type: engine.TypeTransactions, Content: &engine.TransactionsPayload{
		UserID: 1,
		Transactions: []*ledger.TransactionView{
			{
				Transaction: ledger.Transaction{SenderID: 2, ReceiverID: 1, Amount: 1, ItemID: &steal,
					CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
				SenderName: "Bob", ReceiverName: "Alice", ItemName: &name,
			},
			{
				Transaction: ledger.Transaction{SenderID: 1, ReceiverID: 2, Amount: 150,
					CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
				SenderName: "Alice", ReceiverName: "Bob", ItemName: &name,
			},
		},
	}}

	want := "📋 Last 2 transactions:\n" +
		"\n01.03.2026 13:00 | +1 MP | Bob → Alice | steal" +
		"\n01.03.2026 12:00 | -150 MP | Alice → Bob | Coffee Run"
	assert.Equal(t, want, r.Render(res))
}

func TestRenderHelpListsAliases(t *testing.T) {
	r := NewRenderer(time.UTC)
	res := &engine.Result{Type: engine.TypeHelp, Content: &engine.HelpPayload{Commands: []engine.HelpEntry{
		{Name: "catalogue", Aliases: []string{"catalog"}, Usage: "catalogue", Description: "Show the catalogue"},
	}}}

	assert.Equal(t, "📖 Available commands:\n\n!catalogue: Show the catalogue (also: catalog)", r.Render(res))
}
