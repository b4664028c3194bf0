package engine

import (
	"context"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

func (e *Engine) help(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	cmds := e.registry.Commands()
	entries := make([]HelpEntry, 0, len(cmds))
	for _, c := range cmds {
		entries = append(entries, HelpEntry{
			Name:        c.Name,
			Aliases:     c.Aliases,
			Usage:       c.Usage,
			Description: c.Description,
		})
	}
	return &Result{Type: TypeHelp, Content: &HelpPayload{Commands: entries}}, nil
}

func (e *Engine) balance(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	return &Result{Type: TypeBalance, Content: &BalancePayload{User: caller}}, nil
}

func (e *Engine) catalogue(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	items, err := e.ledger.ListCatalogItems(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*ledger.CatalogItem{}
	}
	return &Result{Type: TypeCatalogue, Content: &CataloguePayload{Items: items}}, nil
}

func (e *Engine) buy(ctx context.Context, caller *ledger.User, args SlugArgs) (*Result, error) {
	p, err := e.Purchase(ctx, caller, args.Slug)
	if err != nil {
		return nil, err
	}
	return &Result{Type: TypePurchaseSuccess, Content: &PurchasePayload{Purchase: *p}}, nil
}

// Purchase покупает товар по slug: цена переводится второй стороне.
// Используется командой buy и HTTP-эндпоинтом /api/purchase.
func (e *Engine) Purchase(ctx context.Context, buyer *ledger.User, slug string) (*Purchase, error) {
	item, err := e.ledger.GetCatalogItemBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	seller, err := e.counterparty.Resolve(ctx, buyer)
	if err != nil {
		return nil, err
	}
	price, err := e.pricing.Price(ctx, buyer, item)
	if err != nil {
		return nil, err
	}

	res, err := e.ledger.Transfer(ctx, ledger.TransferRequest{
		SenderID:   buyer.ID,
		ReceiverID: seller.ID,
		Amount:     price,
		ItemID:     ledger.ItemRef(item.ID),
	})
	if err != nil {
		return nil, err
	}

	return &Purchase{
		Item:          item,
		Cost:          price,
		NewBalance:    res.Sender.Balance,
		Recipient:     res.Receiver.DisplayName,
		TransactionID: res.Transaction.ID,
	}, nil
}

func (e *Engine) allIn(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	if caller.Balance <= 0 {
		return nil, common.InsufficientBalance("You don't have any points to transfer")
	}
	other, err := e.counterparty.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	// itemId намеренно не указывается: это прямой перевод
	res, err := e.ledger.Transfer(ctx, ledger.TransferRequest{
		SenderID:   caller.ID,
		ReceiverID: other.ID,
		Amount:     caller.Balance,
	})
	if err != nil {
		return nil, err
	}

	return &Result{Type: TypeAllInSuccess, Content: &AllInPayload{
		Amount:           res.Transaction.Amount,
		NewBalance:       res.Sender.Balance,
		Recipient:        res.Receiver.DisplayName,
		RecipientBalance: res.Receiver.Balance,
	}}, nil
}

func (e *Engine) transactions(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	txs, err := e.ledger.ListTransactionsForUser(ctx, caller.ID, RecentTransactionsLimit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*ledger.TransactionView{}
	}
	return &Result{Type: TypeTransactions, Content: &TransactionsPayload{UserID: caller.ID, Transactions: txs}}, nil
}

func (e *Engine) rules(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	rules, err := e.ledger.ListRules(ctx, true)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []*ledger.Rule{}
	}
	return &Result{Type: TypeRules, Content: &RulesPayload{Rules: rules}}, nil
}

func (e *Engine) mission(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	a, err := e.missions.GetOrAssignMission(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Type: TypeMission, Content: &MissionPayload{Mission: a}}, nil
}

func (e *Engine) missionDone(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	c, err := e.missions.CompleteToday(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Type: TypeMissionCompleted, Content: &MissionCompletedPayload{
		Mission:         c.Assignment,
		Reward:          c.Reward,
		RewardCancelled: c.RewardCancelled,
	}}, nil
}
