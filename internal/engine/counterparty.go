package engine

import (
	"context"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// Counterparty определяет, с кем взаимодействует вызывающий пользователь.
type Counterparty interface {
	Resolve(ctx context.Context, caller *ledger.User) (*ledger.User, error)
}

// UserLister отдаёт участников в порядке создания.
type UserLister interface {
	ListUsers(ctx context.Context) ([]*ledger.User, error)
}

// FirstOtherUser: режим «ровно два участника».
// Второй стороной считается первый по порядку создания пользователь, кроме вызывающего.
type FirstOtherUser struct {
	Users UserLister
}

func (f FirstOtherUser) Resolve(ctx context.Context, caller *ledger.User) (*ledger.User, error) {
	users, err := f.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID != caller.ID {
			return u, nil
		}
	}
	return nil, common.NotFound("There is no one else to trade with yet")
}

// Pricing определяет цену покупки для конкретного покупателя.
// Сюда подключается скидка за миссии, когда её начнут применять к покупкам.
type Pricing interface {
	Price(ctx context.Context, buyer *ledger.User, item *ledger.CatalogItem) (int64, error)
}

// ListPrice: цена из каталога.
type ListPrice struct{}

func (ListPrice) Price(ctx context.Context, buyer *ledger.User, item *ledger.CatalogItem) (int64, error) {
	return item.Price, nil
}
