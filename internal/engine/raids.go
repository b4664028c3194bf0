package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// robinHood забирает половину баланса у неактивного и не более бедного игрока.
// Все условия проверяются по заблокированным балансам внутри перевода.
func (e *Engine) robinHood(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	target, err := e.counterparty.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	since := e.now().Add(-RobinHoodQuietWindow)

	var amount int64
	res, err := e.ledger.GuardedTransfer(ctx, caller.ID, target.ID,
		func(ctx context.Context, h ledger.History, thief, victim *ledger.User) (ledger.TransferRequest, error) {
			active, err := h.HasOutgoingSince(ctx, victim.ID, since)
			if err != nil {
				return ledger.TransferRequest{}, err
			}
			if active {
				return ledger.TransferRequest{}, common.Cooldown("%s has made a transaction in the last 24 hours. Robin Hood only works on inactive players.", victim.DisplayName)
			}
			if victim.Balance <= 0 {
				return ledger.TransferRequest{}, common.InsufficientBalance("%s has no points to steal", victim.DisplayName)
			}
			if victim.Balance < thief.Balance {
				return ledger.TransferRequest{}, common.Validation("Robin Hood only steals from the rich: %s has less than you", victim.DisplayName)
			}

			amount = victim.Balance / 2
			if amount < 1 {
				return ledger.TransferRequest{}, common.InsufficientBalance("%s doesn't have enough points to steal", victim.DisplayName)
			}
			return ledger.TransferRequest{SenderID: victim.ID, ReceiverID: thief.ID, Amount: amount}, nil
		})
	if err != nil {
		return nil, err
	}

	return &Result{Type: TypeRobinHoodResult, Content: &RobinHoodPayload{
		Amount:        amount,
		Victim:        res.Sender.DisplayName,
		VictimBalance: res.Sender.Balance,
		NewBalance:    res.Receiver.Balance,
	}}, nil
}

// steal: с шансом StealSuccessChance 1 MP уходит от соперника вызывающему,
// иначе наоборот. Обе ветки помечаются StealItemID, по ней же считается перезарядка.
// Перезарядка проверяется в той же атомарной операции, что и перевод.
func (e *Engine) steal(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	target, err := e.counterparty.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	since := e.now().Add(-StealCooldown)

	var success bool
	res, err := e.ledger.GuardedTransfer(ctx, caller.ID, target.ID,
		func(ctx context.Context, h ledger.History, thief, opponent *ledger.User) (ledger.TransferRequest, error) {
			onCooldown, err := h.HasTaggedTransactionSince(ctx, thief.ID, ledger.StealItemID, since)
			if err != nil {
				return ledger.TransferRequest{}, err
			}
			if onCooldown {
				return ledger.TransferRequest{}, common.Cooldown("You can only steal once every 2 hours. Try again later.")
			}

			success = e.roller.Float64() < StealSuccessChance
			req := ledger.TransferRequest{Amount: StealAmount, ItemID: ledger.ItemRef(ledger.StealItemID)}
			if success {
				if opponent.Balance < StealAmount {
					return ledger.TransferRequest{}, common.InsufficientBalance("%s has no points to steal", opponent.DisplayName)
				}
				req.SenderID, req.ReceiverID = opponent.ID, thief.ID
			} else {
				if thief.Balance < StealAmount {
					return ledger.TransferRequest{}, common.InsufficientBalance("You got caught, but you have no points to pay %s", opponent.DisplayName)
				}
				req.SenderID, req.ReceiverID = thief.ID, opponent.ID
			}
			return req, nil
		})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": caller.ID,
		"success": success,
	}).Info("Steal выполнен")

	p := &StealPayload{Success: success, Amount: StealAmount}
	if success {
		p.Opponent, p.OpponentBalance, p.NewBalance = res.Sender.DisplayName, res.Sender.Balance, res.Receiver.Balance
	} else {
		p.Opponent, p.OpponentBalance, p.NewBalance = res.Receiver.DisplayName, res.Receiver.Balance, res.Sender.Balance
	}
	return &Result{Type: TypeStealResult, Content: p}, nil
}
