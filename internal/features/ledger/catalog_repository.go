package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/db/postgres"
)

// id > 0 во всех выборках: строка StealItemID не является товаром.
const catalogColumns = `id, name, description, price, slug, created_at`

func scanCatalogItem(row rowScanner) (*CatalogItem, error) {
	it := &CatalogItem{}
	if err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Slug, &it.CreatedAt); err != nil {
		return nil, err
	}
	return it, nil
}

func catalogError(err error, in CatalogItemInput) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return common.NotFound("Item not found")
	case postgres.ErrorCode(err) == postgres.CodeUniqueViolation:
		return common.Conflict("An item with slug %q already exists", in.Slug)
	case postgres.ErrorCode(err) == postgres.CodeCheckViolation:
		return common.Validation("Price must be a positive whole number")
	}
	return err
}

// GetCatalogItem возвращает товар по id.
func (r *Repository) GetCatalogItem(ctx context.Context, id int64) (*CatalogItem, error) {
	it, err := scanCatalogItem(r.db.QueryRow(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1 AND id > 0`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("Item not found")
		}
		return nil, fmt.Errorf("ошибка получения товара %d: %w", id, err)
	}
	return it, nil
}

// GetCatalogItemBySlug возвращает товар по slug.
func (r *Repository) GetCatalogItemBySlug(ctx context.Context, slug string) (*CatalogItem, error) {
	it, err := scanCatalogItem(r.db.QueryRow(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE slug = $1 AND id > 0`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("Item %q not found", slug)
		}
		return nil, fmt.Errorf("ошибка получения товара %q: %w", slug, err)
	}
	return it, nil
}

// ListCatalogItems возвращает каталог по возрастанию цены.
func (r *Repository) ListCatalogItems(ctx context.Context) ([]*CatalogItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE id > 0 ORDER BY price, id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w", err)
	}
	defer rows.Close()

	var items []*CatalogItem
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения товара: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateCatalogItem добавляет товар.
func (r *Repository) CreateCatalogItem(ctx context.Context, in CatalogItemInput) (*CatalogItem, error) {
	it, err := scanCatalogItem(r.db.QueryRow(ctx, `
		INSERT INTO catalog_items (name, description, price, slug)
		VALUES ($1, $2, $3, $4)
		RETURNING `+catalogColumns,
		in.Name, in.Description, in.Price, in.Slug,
	))
	if err != nil {
		if mapped := catalogError(err, in); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("ошибка создания товара: %w", err)
	}
	return it, nil
}

// UpdateCatalogItem заменяет поля товара.
func (r *Repository) UpdateCatalogItem(ctx context.Context, id int64, in CatalogItemInput) (*CatalogItem, error) {
	it, err := scanCatalogItem(r.db.QueryRow(ctx, `
		UPDATE catalog_items SET name = $2, description = $3, price = $4, slug = $5
		WHERE id = $1 AND id > 0
		RETURNING `+catalogColumns,
		id, in.Name, in.Description, in.Price, in.Slug,
	))
	if err != nil {
		if mapped := catalogError(err, in); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("ошибка обновления товара %d: %w", id, err)
	}
	return it, nil
}

// DeleteCatalogItem удаляет товар. Если товар уже покупали, FK не даст удалить.
func (r *Repository) DeleteCatalogItem(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM catalog_items WHERE id = $1 AND id > 0`, id)
	if err != nil {
		if postgres.ErrorCode(err) == postgres.CodeForeignKeyViolation {
			return common.Conflict("Cannot delete item that has been purchased")
		}
		return fmt.Errorf("ошибка удаления товара %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("Item not found")
	}
	return nil
}
