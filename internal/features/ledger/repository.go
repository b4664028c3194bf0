// Package ledger: repository.go выполняет операции с таблицами users и transactions.
// Все движения MP выполняются в транзакциях БД для целостности данных.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/db/postgres"
)

// Repository реализует Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, display_name, avatar_color, balance, external_id, created_at`

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarColor, &u.Balance, &u.ExternalID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Ping проверяет доступность базы (healthz).
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// GetUser возвращает пользователя по id.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя %d: %w", id, err)
	}
	return u, nil
}

// GetUserByExternalID ищет пользователя по внешнему (Telegram) идентификатору.
func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователя по external_id: %w", err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей в порядке создания.
func (r *Repository) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser добавляет пользователя (сидер, CLI).
func (r *Repository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	var externalID *string
	if in.ExternalID != "" {
		externalID = &in.ExternalID
	}
	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (username, display_name, avatar_color, balance, external_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		in.Username, in.DisplayName, in.AvatarColor, in.Balance, externalID,
	))
	if postgres.ErrorCode(err) == postgres.CodeUniqueViolation {
		return nil, common.Conflict("User %q already exists", in.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return u, nil
}

// LinkExternalID привязывает Telegram-аккаунт к пользователю.
func (r *Repository) LinkExternalID(ctx context.Context, userID int64, externalID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET external_id = $2 WHERE id = $1`, userID, externalID)
	if postgres.ErrorCode(err) == postgres.CodeUniqueViolation {
		return common.Conflict("External id %s is already linked to another user", externalID)
	}
	if err != nil {
		return fmt.Errorf("ошибка привязки external_id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("User not found")
	}
	return nil
}

// Transfer переводит MP от одного пользователя к другому.
// Атомарная операция: либо оба баланса обновятся и транзакция запишется, либо ничего.
func (r *Repository) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockUsers(ctx, tx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	res, err := applyTransfer(ctx, tx, locked, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации перевода: %w", err)
	}
	return res, nil
}

// GuardedTransfer: проверки plan и сам перевод идут в одной транзакции БД
// под блокировкой строк обоих пользователей. Любой другой перевод с их
// участием ждёт коммита, поэтому запросы истории внутри plan не устаревают.
func (r *Repository) GuardedTransfer(ctx context.Context, firstID, secondID int64, plan PlanFunc) (*TransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockUsers(ctx, tx, firstID, secondID)
	if err != nil {
		return nil, err
	}
	first, ok := locked[firstID]
	if !ok {
		return nil, common.NotFound("User not found")
	}
	second, ok := locked[secondID]
	if !ok {
		return nil, common.NotFound("User not found")
	}

	firstCopy, secondCopy := *first, *second
	req, err := plan(ctx, txHistory{q: tx}, &firstCopy, &secondCopy)
	if err != nil {
		return nil, err
	}
	if err := checkPair(req, firstID, secondID); err != nil {
		return nil, err
	}

	res, err := applyTransfer(ctx, tx, locked, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации перевода: %w", err)
	}
	return res, nil
}

// checkPair: перевод из plan не может задеть незаблокированного пользователя.
func checkPair(req TransferRequest, firstID, secondID int64) error {
	inPair := func(id int64) bool { return id == firstID || id == secondID }
	if !inPair(req.SenderID) || !inPair(req.ReceiverID) {
		return fmt.Errorf("перевод %d -> %d вне заблокированной пары %d/%d",
			req.SenderID, req.ReceiverID, firstID, secondID)
	}
	return nil
}

// lockUsers блокирует строки FOR UPDATE в порядке id,
// чтобы встречные переводы не ловили дедлок.
func lockUsers(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]*User, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки пользователей: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]*User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
		}
		locked[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка блокировки пользователей: %w", err)
	}
	return locked, nil
}

// applyTransfer списывает, начисляет и пишет транзакцию.
// Строки участников уже заблокированы в tx.
func applyTransfer(ctx context.Context, tx pgx.Tx, locked map[int64]*User, req TransferRequest) (*TransferResult, error) {
	sender, ok := locked[req.SenderID]
	if !ok {
		return nil, common.NotFound("Sender not found")
	}
	receiver, ok := locked[req.ReceiverID]
	if !ok {
		return nil, common.NotFound("Receiver not found")
	}

	if req.ItemID != nil {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM catalog_items WHERE id = $1)`, *req.ItemID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("ошибка проверки товара: %w", err)
		}
		if !exists {
			return nil, common.NotFound("Item not found")
		}
	}

	if sender.Balance < req.Amount {
		return nil, insufficient(sender.Balance, req.Amount)
	}

	// Списываем у отправителя
	if err := tx.QueryRow(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1 RETURNING balance`,
		sender.ID, req.Amount,
	).Scan(&sender.Balance); err != nil {
		if postgres.ErrorCode(err) == postgres.CodeCheckViolation {
			return nil, insufficient(sender.Balance, req.Amount)
		}
		return nil, fmt.Errorf("ошибка списания у отправителя: %w", err)
	}

	// Начисляем получателю
	if err := tx.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING balance`,
		receiver.ID, req.Amount,
	).Scan(&receiver.Balance); err != nil {
		return nil, fmt.Errorf("ошибка начисления получателю: %w", err)
	}

	// Записываем транзакцию
	t := &Transaction{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     req.Amount,
		ItemID:     req.ItemID,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO transactions (sender_id, receiver_id, amount, item_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.SenderID, t.ReceiverID, t.Amount, t.ItemID).Scan(&t.ID, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	senderCopy, receiverCopy := *sender, *receiver
	return &TransferResult{Transaction: t, Sender: &senderCopy, Receiver: &receiverCopy}, nil
}

func insufficient(have, need int64) error {
	return common.InsufficientBalance("Insufficient balance: you have %s, need %s",
		common.FormatPoints(have), common.FormatPoints(need))
}

const transactionViewQuery = `
	SELECT t.id, t.sender_id, t.receiver_id, t.amount, t.item_id, t.created_at,
	       s.display_name, rc.display_name, c.name
	FROM transactions t
	JOIN users s ON s.id = t.sender_id
	JOIN users rc ON rc.id = t.receiver_id
	LEFT JOIN catalog_items c ON c.id = t.item_id
`

func (r *Repository) queryTransactions(ctx context.Context, sql string, args ...any) ([]*TransactionView, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var result []*TransactionView
	for rows.Next() {
		v := &TransactionView{}
		if err := rows.Scan(
			&v.ID, &v.SenderID, &v.ReceiverID, &v.Amount, &v.ItemID, &v.CreatedAt,
			&v.SenderName, &v.ReceiverName, &v.ItemName,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения транзакции: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// ListTransactions возвращает последние limit транзакций, новые первыми.
func (r *Repository) ListTransactions(ctx context.Context, limit int) ([]*TransactionView, error) {
	return r.queryTransactions(ctx,
		transactionViewQuery+` ORDER BY t.created_at DESC, t.id DESC LIMIT $1`, limit)
}

// ListTransactionsForUser возвращает последние транзакции пользователя (входящие и исходящие).
func (r *Repository) ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]*TransactionView, error) {
	return r.queryTransactions(ctx,
		transactionViewQuery+`
		WHERE t.sender_id = $1 OR t.receiver_id = $1
		ORDER BY t.created_at DESC, t.id DESC LIMIT $2`, userID, limit)
}

// querier: общее у пула и pgx.Tx для запросов истории.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txHistory выполняет запросы истории внутри транзакции GuardedTransfer.
type txHistory struct {
	q querier
}

func (h txHistory) HasOutgoingSince(ctx context.Context, userID int64, since time.Time) (bool, error) {
	return hasOutgoingSince(ctx, h.q, userID, since)
}

func (h txHistory) HasTaggedTransactionSince(ctx context.Context, userID, itemID int64, since time.Time) (bool, error) {
	return hasTaggedTransactionSince(ctx, h.q, userID, itemID, since)
}

// HasOutgoingSince: была ли у пользователя исходящая транзакция после since.
func (r *Repository) HasOutgoingSince(ctx context.Context, userID int64, since time.Time) (bool, error) {
	return hasOutgoingSince(ctx, r.db, userID, since)
}

// HasTaggedTransactionSince: была ли после since транзакция с itemID,
// где пользователь отправитель или получатель.
func (r *Repository) HasTaggedTransactionSince(ctx context.Context, userID, itemID int64, since time.Time) (bool, error) {
	return hasTaggedTransactionSince(ctx, r.db, userID, itemID, since)
}

func hasOutgoingSince(ctx context.Context, q querier, userID int64, since time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE sender_id = $1 AND created_at > $2)
	`, userID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки активности: %w", err)
	}
	return exists, nil
}

func hasTaggedTransactionSince(ctx context.Context, q querier, userID, itemID int64, since time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE item_id = $2 AND (sender_id = $1 OR receiver_id = $1) AND created_at > $3
		)
	`, userID, itemID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки перезарядки: %w", err)
	}
	return exists, nil
}
