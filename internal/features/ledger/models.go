// Package ledger хранит всё состояние экономики MiniPoints:
// пользователей, каталог, журнал транзакций и правила.
// models.go описывает структуры этих сущностей.
package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// StealItemID зарезервированный id товара, которым помечаются транзакции steal.
// Строка с этим id есть в catalog_items, но не видна ни в одном списке.
const StealItemID int64 = -1

// User представляет участника экономики.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarColor string    `json:"avatarColor"`
	Balance     int64     `json:"balance"`              // Текущий баланс в MP, не бывает отрицательным
	ExternalID  *string   `json:"externalId,omitempty"` // Telegram user ID (строкой), nil если не привязан
	CreatedAt   time.Time `json:"createdAt"`
}

// CatalogItem представляет товар из каталога.
type CatalogItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Slug        string    `json:"slug"` // Используется в командах: buy coffee-run
	CreatedAt   time.Time `json:"createdAt"`
}

// CatalogItemInput: поля товара при создании и редактировании.
type CatalogItemInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Slug        string `json:"slug"`
}

// Transaction представляет одно движение MP.
// Направление всегда sender → receiver, в том числе для проигранного steal.
type Transaction struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Amount     int64     `json:"amount"`           // Всегда > 0
	ItemID     *int64    `json:"itemId,omitempty"` // nil для прямого перевода, StealItemID для steal
	CreatedAt  time.Time `json:"createdAt"`
}

// IsSteal сообщает, помечена ли транзакция как steal.
func (t *Transaction) IsSteal() bool {
	return t.ItemID != nil && *t.ItemID == StealItemID
}

// TransactionView: транзакция с именами участников и товара для отображения.
type TransactionView struct {
	Transaction
	SenderName   string  `json:"senderName"`
	ReceiverName string  `json:"receiverName"`
	ItemName     *string `json:"itemName,omitempty"`
}

// Rule: метаданные правила экономики. Только для отображения, на логику не влияют.
type Rule struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Parameters  json.RawMessage `json:"parameters"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RuleInput: поля правила при создании и редактировании.
// IsActive == nil означает «включено» при создании и «не менять» при редактировании.
type RuleInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Parameters  json.RawMessage `json:"parameters"`
	IsActive    *bool           `json:"isActive"`
}

// NewUser: данные для создания пользователя (сидер, CLI).
type NewUser struct {
	Username    string `yaml:"username"`
	DisplayName string `yaml:"displayName"`
	AvatarColor string `yaml:"avatarColor"`
	Balance     int64  `yaml:"balance"`
	ExternalID  string `yaml:"externalId"`
}

// TransferRequest описывает перевод.
type TransferRequest struct {
	SenderID   int64
	ReceiverID int64
	Amount     int64
	ItemID     *int64
}

// TransferResult: записанная транзакция и состояние обоих участников после неё.
type TransferResult struct {
	Transaction *Transaction
	Sender      *User
	Receiver    *User
}

// History: запросы к истории переводов, доступные внутри GuardedTransfer.
// Видят все зафиксированные переводы участников.
type History interface {
	HasOutgoingSince(ctx context.Context, userID int64, since time.Time) (bool, error)
	HasTaggedTransactionSince(ctx context.Context, userID, itemID int64, since time.Time) (bool, error)
}

// PlanFunc решает, какой перевод выполнить, по заблокированным участникам.
// first и second приходят в порядке аргументов GuardedTransfer.
// Ошибка отменяет перевод и возвращается вызывающему как есть.
// Внутри нельзя вызывать другие методы Store.
type PlanFunc func(ctx context.Context, h History, first, second *User) (TransferRequest, error)

// ItemRef возвращает указатель на id для TransferRequest.ItemID.
func ItemRef(id int64) *int64 {
	return &id
}
