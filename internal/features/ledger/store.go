package ledger

import (
	"context"
	"time"
)

// Store: хранилище экономики. Repository работает поверх PostgreSQL,
// ledgertest.MemoryStore держит всё в памяти для тестов.
//
// Реализации возвращают ошибки классов из internal/common:
// NotFound, Conflict, InsufficientBalance, Validation.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	LinkExternalID(ctx context.Context, userID int64, externalID string) error

	GetCatalogItem(ctx context.Context, id int64) (*CatalogItem, error)
	GetCatalogItemBySlug(ctx context.Context, slug string) (*CatalogItem, error)
	ListCatalogItems(ctx context.Context) ([]*CatalogItem, error)
	CreateCatalogItem(ctx context.Context, in CatalogItemInput) (*CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, id int64, in CatalogItemInput) (*CatalogItem, error)
	DeleteCatalogItem(ctx context.Context, id int64) error

	// Transfer атомарно списывает, начисляет и пишет транзакцию.
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	// GuardedTransfer блокирует обоих пользователей, вызывает plan с их текущим
	// состоянием и выполняет его перевод в той же атомарной операции.
	// Перевод из plan должен быть между firstID и secondID.
	GuardedTransfer(ctx context.Context, firstID, secondID int64, plan PlanFunc) (*TransferResult, error)
	ListTransactions(ctx context.Context, limit int) ([]*TransactionView, error)
	ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]*TransactionView, error)
	HasOutgoingSince(ctx context.Context, userID int64, since time.Time) (bool, error)
	// HasTaggedTransactionSince ищет транзакцию с itemID, где userID отправитель или получатель.
	HasTaggedTransactionSince(ctx context.Context, userID, itemID int64, since time.Time) (bool, error)

	ListRules(ctx context.Context, activeOnly bool) ([]*Rule, error)
	GetRule(ctx context.Context, id int64) (*Rule, error)
	CreateRule(ctx context.Context, in RuleInput) (*Rule, error)
	UpdateRule(ctx context.Context, id int64, in RuleInput) (*Rule, error)
	DeleteRule(ctx context.Context, id int64) error
}
