// Package ledger: service.go содержит проверку входных данных и
// бизнес-правила поверх хранилища.
package ledger

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
)

// Ограничения на размер выборок транзакций.
const (
	DefaultTransactionsLimit = 10
	MaxTransactionsLimit     = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Service управляет экономикой MiniPoints.
type Service struct {
	store Store
}

// NewService создаёт новый сервис поверх хранилища.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- Пользователи ---

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	return s.store.GetUserByExternalID(ctx, externalID)
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}

// CreateUser проверяет и создаёт пользователя.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.Username == "" {
		return nil, common.Validation("Username is required")
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}
	if in.AvatarColor == "" {
		in.AvatarColor = "#6366f1"
	}
	if in.Balance < 0 {
		return nil, common.Validation("Balance cannot be negative")
	}
	return s.store.CreateUser(ctx, in)
}

// LinkExternalID привязывает внешний аккаунт к пользователю.
func (s *Service) LinkExternalID(ctx context.Context, userID int64, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return common.Validation("External id is required")
	}
	if err := s.store.LinkExternalID(ctx, userID, externalID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "external_id": externalID}).Info("Аккаунт привязан")
	return nil
}

// --- Каталог ---

func (s *Service) GetCatalogItem(ctx context.Context, id int64) (*CatalogItem, error) {
	return s.store.GetCatalogItem(ctx, id)
}

// GetCatalogItemBySlug ищет товар по slug без учёта регистра.
func (s *Service) GetCatalogItemBySlug(ctx context.Context, slug string) (*CatalogItem, error) {
	return s.store.GetCatalogItemBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

func (s *Service) ListCatalogItems(ctx context.Context) ([]*CatalogItem, error) {
	return s.store.ListCatalogItems(ctx)
}

func (s *Service) CreateCatalogItem(ctx context.Context, in CatalogItemInput) (*CatalogItem, error) {
	in, err := normalizeCatalogItem(in)
	if err != nil {
		return nil, err
	}
	it, err := s.store.CreateCatalogItem(ctx, in)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"item_id": it.ID, "slug": it.Slug}).Info("Товар добавлен в каталог")
	return it, nil
}

func (s *Service) UpdateCatalogItem(ctx context.Context, id int64, in CatalogItemInput) (*CatalogItem, error) {
	in, err := normalizeCatalogItem(in)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateCatalogItem(ctx, id, in)
}

// DeleteCatalogItem удаляет товар, если его ни разу не покупали.
func (s *Service) DeleteCatalogItem(ctx context.Context, id int64) error {
	if err := s.store.DeleteCatalogItem(ctx, id); err != nil {
		return err
	}
	log.WithField("item_id", id).Info("Товар удалён из каталога")
	return nil
}

func normalizeCatalogItem(in CatalogItemInput) (CatalogItemInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))

	switch {
	case in.Name == "":
		return in, common.Validation("Name is required")
	case len(in.Name) > 255:
		return in, common.Validation("Name is too long")
	case in.Description == "":
		return in, common.Validation("Description is required")
	case in.Price <= 0:
		return in, common.Validation("Price must be a positive whole number")
	case !slugPattern.MatchString(in.Slug):
		return in, common.Validation("Slug must contain only lowercase letters, digits and single hyphens")
	}
	return in, nil
}

// --- Переводы ---

// Transfer переводит MP от отправителя получателю.
// Выполняет проверки:
//   - нельзя переводить себе
//   - сумма должна быть положительной
//   - у отправителя должно хватать MP (внутри хранилища, атомарно)
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}

	res, err := s.store.Transfer(ctx, req)
	if err != nil {
		return nil, err
	}
	logTransfer(res)
	return res, nil
}

// GuardedTransfer выполняет перевод, который plan выбирает по заблокированным
// участникам. Проверки plan и перевод атомарны: конкурирующие вызовы
// для той же пары выполняются по очереди.
func (s *Service) GuardedTransfer(ctx context.Context, firstID, secondID int64, plan PlanFunc) (*TransferResult, error) {
	res, err := s.store.GuardedTransfer(ctx, firstID, secondID,
		func(ctx context.Context, h History, first, second *User) (TransferRequest, error) {
			req, err := plan(ctx, h, first, second)
			if err != nil {
				return req, err
			}
			return req, validateTransfer(req)
		})
	if err != nil {
		return nil, err
	}
	logTransfer(res)
	return res, nil
}

func validateTransfer(req TransferRequest) error {
	if req.SenderID == req.ReceiverID {
		return common.Validation("You cannot transfer points to yourself")
	}
	if req.Amount <= 0 {
		return common.Validation("Amount must be a positive whole number")
	}
	return nil
}

func logTransfer(res *TransferResult) {
	t := res.Transaction
	fields := log.Fields{
		"tx_id":  t.ID,
		"from":   t.SenderID,
		"to":     t.ReceiverID,
		"amount": t.Amount,
	}
	if t.ItemID != nil {
		fields["item_id"] = *t.ItemID
	}
	log.WithFields(fields).Info("Перевод выполнен")
}

// ListTransactions возвращает последние транзакции всех пользователей.
func (s *Service) ListTransactions(ctx context.Context, limit int) ([]*TransactionView, error) {
	return s.store.ListTransactions(ctx, clampLimit(limit))
}

// ListTransactionsForUser возвращает последние транзакции пользователя.
func (s *Service) ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]*TransactionView, error) {
	return s.store.ListTransactionsForUser(ctx, userID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultTransactionsLimit
	}
	if limit > MaxTransactionsLimit {
		return MaxTransactionsLimit
	}
	return limit
}

func (s *Service) HasOutgoingSince(ctx context.Context, userID int64, since time.Time) (bool, error) {
	return s.store.HasOutgoingSince(ctx, userID, since)
}

func (s *Service) HasTaggedTransactionSince(ctx context.Context, userID, itemID int64, since time.Time) (bool, error) {
	return s.store.HasTaggedTransactionSince(ctx, userID, itemID, since)
}

// --- Правила ---

func (s *Service) ListRules(ctx context.Context, activeOnly bool) ([]*Rule, error) {
	return s.store.ListRules(ctx, activeOnly)
}

func (s *Service) GetRule(ctx context.Context, id int64) (*Rule, error) {
	return s.store.GetRule(ctx, id)
}

func (s *Service) CreateRule(ctx context.Context, in RuleInput) (*Rule, error) {
	in, err := normalizeRule(in)
	if err != nil {
		return nil, err
	}
	return s.store.CreateRule(ctx, in)
}

func (s *Service) UpdateRule(ctx context.Context, id int64, in RuleInput) (*Rule, error) {
	in, err := normalizeRule(in)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateRule(ctx, id, in)
}

func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	return s.store.DeleteRule(ctx, id)
}

func normalizeRule(in RuleInput) (RuleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Type = strings.TrimSpace(in.Type)

	if in.Name == "" {
		return in, common.Validation("Name is required")
	}
	if in.Description == "" {
		return in, common.Validation("Description is required")
	}
	if in.Type == "" {
		return in, common.Validation("Type is required")
	}
	if len(strings.TrimSpace(string(in.Parameters))) == 0 || string(in.Parameters) == "null" {
		in.Parameters = json.RawMessage(`{}`)
	}
	if !json.Valid(in.Parameters) {
		return in, common.Validation("Parameters must be valid JSON")
	}
	return in, nil
}
