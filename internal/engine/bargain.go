package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/bargain"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// bargain: предложение адресуется второй стороне и ждёт accept/reject.
// Новое предложение тому же получателю вытесняет старое.
func (e *Engine) bargain(ctx context.Context, caller *ledger.User, args BargainArgs) (*Result, error) {
	item, err := e.ledger.GetCatalogItemBySlug(ctx, args.Slug)
	if err != nil {
		return nil, err
	}
	if args.Price < MinBargainPrice {
		return nil, common.Validation("The minimum bargain price is %s", common.FormatPoints(MinBargainPrice))
	}
	if args.Price > item.Price {
		return nil, common.Validation("Your offer can't be higher than the list price of %s", common.FormatPoints(item.Price))
	}
	if caller.Balance < args.Price {
		return nil, common.InsufficientBalance("Insufficient balance: you have %s, need %s",
			common.FormatPoints(caller.Balance), common.FormatPoints(args.Price))
	}

	other, err := e.counterparty.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	offer := bargain.Offer{
		ID:            uuid.New(),
		OffererID:     caller.ID,
		ResponderID:   other.ID,
		ItemID:        item.ID,
		ItemSlug:      item.Slug,
		ItemName:      item.Name,
		OfferedPrice:  args.Price,
		OriginalPrice: item.Price,
		CreatedAt:     e.now(),
	}
	replaced := e.bargains.Put(offer)
	discount, percent := offer.Discount()

	return &Result{Type: TypeBargainInitiated, Content: &BargainInitiatedPayload{Offer: BargainOffer{
		ID:                 offer.ID.String(),
		Item:               item,
		OfferedPrice:       args.Price,
		OriginalPrice:      item.Price,
		Discount:           discount,
		DiscountPercentage: percent,
		Offerer:            caller.DisplayName,
		Recipient:          other.DisplayName,
		Replaced:           replaced,
	}}}, nil
}

// accept: предложение забирается атомарно, затем offerer платит вызывающему.
// Если перевод не прошёл, предложение всё равно считается закрытым.
func (e *Engine) accept(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	offer, ok := e.bargains.Take(caller.ID)
	if !ok {
		return nil, common.NoActiveOffer("You don't have any pending offers to accept")
	}

	res, err := e.ledger.Transfer(ctx, ledger.TransferRequest{
		SenderID:   offer.OffererID,
		ReceiverID: caller.ID,
		Amount:     offer.OfferedPrice,
		ItemID:     ledger.ItemRef(offer.ItemID),
	})
	if err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			return nil, common.InsufficientBalance("The other player no longer has enough points for this offer (%s needed)",
				common.FormatPoints(offer.OfferedPrice))
		}
		return nil, err
	}

	return &Result{Type: TypeBargainAccepted, Content: &BargainAcceptedPayload{
		ItemName:       offer.ItemName,
		ItemSlug:       offer.ItemSlug,
		Price:          offer.OfferedPrice,
		OriginalPrice:  offer.OriginalPrice,
		Offerer:        res.Sender.DisplayName,
		OffererBalance: res.Sender.Balance,
		NewBalance:     res.Receiver.Balance,
		TransactionID:  res.Transaction.ID,
	}}, nil
}

func (e *Engine) reject(ctx context.Context, caller *ledger.User, _ NoArgs) (*Result, error) {
	offer, ok := e.bargains.Take(caller.ID)
	if !ok {
		return nil, common.NoActiveOffer("You don't have any pending offers to reject")
	}

	offerer := "The other player"
	if u, err := e.ledger.GetUser(ctx, offer.OffererID); err == nil {
		offerer = u.DisplayName
	}

	return &Result{Type: TypeBargainRejected, Content: &BargainRejectedPayload{
		ItemName:      offer.ItemName,
		ItemSlug:      offer.ItemSlug,
		OfferedPrice:  offer.OfferedPrice,
		OriginalPrice: offer.OriginalPrice,
		Offerer:       offerer,
	}}, nil
}
