// Package ledgertest содержит хранилище экономики в памяти для тестов.
// Семантика совпадает с ledger.Repository: те же классы ошибок,
// та же сортировка, переводы атомарны.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// MemoryStore реализует ledger.Store в памяти.
type MemoryStore struct {
	mu sync.Mutex

	// Now задаёт время создания записей. По умолчанию time.Now.
	Now func() time.Time
	// Err, если задана, возвращается из каждого вызова (имитация обрыва БД).
	Err error

	users []*ledger.User
	items []*ledger.CatalogItem
	txs   []*ledger.Transaction
	rules []*ledger.Rule

	nextUserID int64
	nextItemID int64
	nextTxID   int64
	nextRuleID int64
}

var _ ledger.Store = (*MemoryStore)(nil)

// New создаёт пустое хранилище.
func New() *MemoryStore {
	return &MemoryStore{Now: time.Now}
}

func (m *MemoryStore) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func copyUser(u *ledger.User) *ledger.User {
	c := *u
	return &c
}

func copyItem(it *ledger.CatalogItem) *ledger.CatalogItem {
	c := *it
	return &c
}

func (m *MemoryStore) findUser(id int64) *ledger.User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *MemoryStore) findItem(id int64) *ledger.CatalogItem {
	for _, it := range m.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// --- Хелперы для тестов ---

// AddUser добавляет пользователя с балансом и возвращает его копию.
func (m *MemoryStore) AddUser(username string, balance int64) *ledger.User {
	u, err := m.CreateUser(context.Background(), ledger.NewUser{
		Username:    username,
		DisplayName: username,
		AvatarColor: "#000000",
		Balance:     balance,
	})
	if err != nil {
		panic(err)
	}
	return u
}

// AddItem добавляет товар и возвращает его копию.
func (m *MemoryStore) AddItem(slug string, price int64) *ledger.CatalogItem {
	it, err := m.CreateCatalogItem(context.Background(), ledger.CatalogItemInput{
		Name:        slug,
		Description: slug,
		Price:       price,
		Slug:        slug,
	})
	if err != nil {
		panic(err)
	}
	return it
}

// SetBalance принудительно выставляет баланс.
func (m *MemoryStore) SetBalance(userID, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		u.Balance = balance
	}
}

// Balance возвращает текущий баланс пользователя.
func (m *MemoryStore) Balance(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		return u.Balance
	}
	return 0
}

// Transactions возвращает копию журнала в порядке записи.
func (m *MemoryStore) Transactions() []ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Transaction, 0, len(m.txs))
	for _, t := range m.txs {
		out = append(out, *t)
	}
	return out
}

// --- ledger.Store ---

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.Err
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u := m.findUser(id)
	if u == nil {
		return nil, common.NotFound("User not found")
	}
	return copyUser(u), nil
}

func (m *MemoryStore) GetUserByExternalID(ctx context.Context, externalID string) (*ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			return copyUser(u), nil
		}
	}
	return nil, common.NotFound("User not found")
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]*ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*ledger.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, in ledger.NewUser) (*ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.Username == in.Username {
			return nil, common.Conflict("User %q already exists", in.Username)
		}
		if in.ExternalID != "" && u.ExternalID != nil && *u.ExternalID == in.ExternalID {
			return nil, common.Conflict("User %q already exists", in.Username)
		}
	}
	m.nextUserID++
	u := &ledger.User{
		ID:          m.nextUserID,
		Username:    in.Username,
		DisplayName: in.DisplayName,
		AvatarColor: in.AvatarColor,
		Balance:     in.Balance,
		CreatedAt:   m.now(),
	}
	if in.ExternalID != "" {
		ext := in.ExternalID
		u.ExternalID = &ext
	}
	m.users = append(m.users, u)
	return copyUser(u), nil
}

func (m *MemoryStore) LinkExternalID(ctx context.Context, userID int64, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, u := range m.users {
		if u.ID != userID && u.ExternalID != nil && *u.ExternalID == externalID {
			return common.Conflict("External id %s is already linked to another user", externalID)
		}
	}
	u := m.findUser(userID)
	if u == nil {
		return common.NotFound("User not found")
	}
	ext := externalID
	u.ExternalID = &ext
	return nil
}

func (m *MemoryStore) GetCatalogItem(ctx context.Context, id int64) (*ledger.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	it := m.findItem(id)
	if it == nil {
		return nil, common.NotFound("Item not found")
	}
	return copyItem(it), nil
}

func (m *MemoryStore) GetCatalogItemBySlug(ctx context.Context, slug string) (*ledger.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, it := range m.items {
		if it.Slug == slug {
			return copyItem(it), nil
		}
	}
	return nil, common.NotFound("Item %q not found", slug)
}

func (m *MemoryStore) ListCatalogItems(ctx context.Context) ([]*ledger.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*ledger.CatalogItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, copyItem(it))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) slugTaken(slug string, exceptID int64) bool {
	for _, it := range m.items {
		if it.Slug == slug && it.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateCatalogItem(ctx context.Context, in ledger.CatalogItemInput) (*ledger.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.slugTaken(in.Slug, 0) {
		return nil, common.Conflict("An item with slug %q already exists", in.Slug)
	}
	m.nextItemID++
	it := &ledger.CatalogItem{
		ID:          m.nextItemID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Slug:        in.Slug,
		CreatedAt:   m.now(),
	}
	m.items = append(m.items, it)
	return copyItem(it), nil
}

func (m *MemoryStore) UpdateCatalogItem(ctx context.Context, id int64, in ledger.CatalogItemInput) (*ledger.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	it := m.findItem(id)
	if it == nil {
		return nil, common.NotFound("Item not found")
	}
	if m.slugTaken(in.Slug, id) {
		return nil, common.Conflict("An item with slug %q already exists", in.Slug)
	}
	it.Name, it.Description, it.Price, it.Slug = in.Name, in.Description, in.Price, in.Slug
	return copyItem(it), nil
}

func (m *MemoryStore) DeleteCatalogItem(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, t := range m.txs {
		if t.ItemID != nil && *t.ItemID == id {
			return common.Conflict("Cannot delete item that has been purchased")
		}
	}
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return common.NotFound("Item not found")
}

func (m *MemoryStore) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.transfer(req)
}

func (m *MemoryStore) GuardedTransfer(ctx context.Context, firstID, secondID int64, plan ledger.PlanFunc) (*ledger.TransferResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	first, second := m.findUser(firstID), m.findUser(secondID)
	if first == nil || second == nil {
		return nil, common.NotFound("User not found")
	}

	req, err := plan(ctx, memHistory{m: m}, copyUser(first), copyUser(second))
	if err != nil {
		return nil, err
	}
	inPair := func(id int64) bool { return id == firstID || id == secondID }
	if !inPair(req.SenderID) || !inPair(req.ReceiverID) {
		return nil, fmt.Errorf("transfer %d -> %d outside locked pair %d/%d",
			req.SenderID, req.ReceiverID, firstID, secondID)
	}
	return m.transfer(req)
}

// transfer вызывается под m.mu.
func (m *MemoryStore) transfer(req ledger.TransferRequest) (*ledger.TransferResult, error) {
	sender := m.findUser(req.SenderID)
	if sender == nil {
		return nil, common.NotFound("Sender not found")
	}
	receiver := m.findUser(req.ReceiverID)
	if receiver == nil {
		return nil, common.NotFound("Receiver not found")
	}
	if req.ItemID != nil && *req.ItemID != ledger.StealItemID && m.findItem(*req.ItemID) == nil {
		return nil, common.NotFound("Item not found")
	}
	if sender.Balance < req.Amount {
		return nil, common.InsufficientBalance("Insufficient balance: you have %s, need %s",
			common.FormatPoints(sender.Balance), common.FormatPoints(req.Amount))
	}

	sender.Balance -= req.Amount
	receiver.Balance += req.Amount

	m.nextTxID++
	t := &ledger.Transaction{
		ID:         m.nextTxID,
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     req.Amount,
		CreatedAt:  m.now(),
	}
	if req.ItemID != nil {
		id := *req.ItemID
		t.ItemID = &id
	}
	m.txs = append(m.txs, t)

	tc := *t
	return &ledger.TransferResult{Transaction: &tc, Sender: copyUser(sender), Receiver: copyUser(receiver)}, nil
}

func (m *MemoryStore) view(t *ledger.Transaction) *ledger.TransactionView {
	v := &ledger.TransactionView{Transaction: *t}
	if u := m.findUser(t.SenderID); u != nil {
		v.SenderName = u.DisplayName
	}
	if u := m.findUser(t.ReceiverID); u != nil {
		v.ReceiverName = u.DisplayName
	}
	if t.ItemID != nil {
		name := "Steal"
		if it := m.findItem(*t.ItemID); it != nil {
			name = it.Name
		}
		v.ItemName = &name
	}
	return v
}

// newestFirst: created_at DESC, id DESC.
func (m *MemoryStore) newestFirst(match func(*ledger.Transaction) bool, limit int) []*ledger.TransactionView {
	var out []*ledger.TransactionView
	for _, t := range m.txs {
		if match(t) {
			out = append(out, m.view(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MemoryStore) ListTransactions(ctx context.Context, limit int) ([]*ledger.TransactionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.newestFirst(func(*ledger.Transaction) bool { return true }, limit), nil
}

func (m *MemoryStore) ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]*ledger.TransactionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.newestFirst(func(t *ledger.Transaction) bool {
		return t.SenderID == userID || t.ReceiverID == userID
	}, limit), nil
}

func (m *MemoryStore) HasOutgoingSince(ctx context.Context, userID int64, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return m.hasOutgoingSince(userID, since), nil
}

func (m *MemoryStore) HasTaggedTransactionSince(ctx context.Context, userID, itemID int64, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return m.hasTaggedSince(userID, itemID, since), nil
}

func (m *MemoryStore) hasOutgoingSince(userID int64, since time.Time) bool {
	for _, t := range m.txs {
		if t.SenderID == userID && t.CreatedAt.After(since) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) hasTaggedSince(userID, itemID int64, since time.Time) bool {
	for _, t := range m.txs {
		if t.ItemID == nil || *t.ItemID != itemID || !t.CreatedAt.After(since) {
			continue
		}
		if t.SenderID == userID || t.ReceiverID == userID {
			return true
		}
	}
	return false
}

// memHistory читает историю без захвата m.mu: его держит GuardedTransfer.
type memHistory struct {
	m *MemoryStore
}

func (h memHistory) HasOutgoingSince(_ context.Context, userID int64, since time.Time) (bool, error) {
	return h.m.hasOutgoingSince(userID, since), nil
}

func (h memHistory) HasTaggedTransactionSince(_ context.Context, userID, itemID int64, since time.Time) (bool, error) {
	return h.m.hasTaggedSince(userID, itemID, since), nil
}

func (m *MemoryStore) ListRules(ctx context.Context, activeOnly bool) ([]*ledger.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*ledger.Rule
	for _, r := range m.rules {
		if activeOnly && !r.IsActive {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) GetRule(ctx context.Context, id int64) (*ledger.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, r := range m.rules {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, common.NotFound("Rule not found")
}

func (m *MemoryStore) CreateRule(ctx context.Context, in ledger.RuleInput) (*ledger.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	m.nextRuleID++
	r := &ledger.Rule{
		ID:          m.nextRuleID,
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Parameters:  append(json.RawMessage(nil), in.Parameters...),
		IsActive:    active,
		CreatedAt:   m.now(),
	}
	m.rules = append(m.rules, r)
	c := *r
	return &c, nil
}

func (m *MemoryStore) UpdateRule(ctx context.Context, id int64, in ledger.RuleInput) (*ledger.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, r := range m.rules {
		if r.ID != id {
			continue
		}
		r.Name, r.Description, r.Type = in.Name, in.Description, in.Type
		r.Parameters = append(json.RawMessage(nil), in.Parameters...)
		if in.IsActive != nil {
			r.IsActive = *in.IsActive
		}
		c := *r
		return &c, nil
	}
	return nil, common.NotFound("Rule not found")
}

func (m *MemoryStore) DeleteRule(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return common.NotFound("Rule not found")
}
