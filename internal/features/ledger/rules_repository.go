package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/minipoints-bot/internal/common"
)

const ruleColumns = `id, name, description, type, parameters::text, is_active, created_at`

func scanRule(row rowScanner) (*Rule, error) {
	rule := &Rule{}
	var params string
	if err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.Type, &params, &rule.IsActive, &rule.CreatedAt); err != nil {
		return nil, err
	}
	rule.Parameters = json.RawMessage(params)
	return rule, nil
}

// ListRules возвращает правила; activeOnly оставляет только включённые.
func (r *Repository) ListRules(ctx context.Context, activeOnly bool) ([]*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения правил: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения правила: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetRule возвращает правило по id.
func (r *Repository) GetRule(ctx context.Context, id int64) (*Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("Rule not found")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения правила %d: %w", id, err)
	}
	return rule, nil
}

// CreateRule добавляет правило.
func (r *Repository) CreateRule(ctx context.Context, in RuleInput) (*Rule, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	rule, err := scanRule(r.db.QueryRow(ctx, `
		INSERT INTO rules (name, description, type, parameters, is_active)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		RETURNING `+ruleColumns,
		in.Name, in.Description, in.Type, string(in.Parameters), active,
	))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания правила: %w", err)
	}
	return rule, nil
}

// UpdateRule заменяет поля правила. is_active меняется, только если передан.
func (r *Repository) UpdateRule(ctx context.Context, id int64, in RuleInput) (*Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `
		UPDATE rules
		SET name = $2, description = $3, type = $4, parameters = $5::jsonb,
		    is_active = COALESCE($6, is_active)
		WHERE id = $1
		RETURNING `+ruleColumns,
		id, in.Name, in.Description, in.Type, string(in.Parameters), in.IsActive,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("Rule not found")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления правила %d: %w", id, err)
	}
	return rule, nil
}

// DeleteRule удаляет правило.
func (r *Repository) DeleteRule(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления правила %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("Rule not found")
	}
	return nil
}
