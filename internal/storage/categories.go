package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kantongapp/kantong/internal/common"
	"github.com/kantongapp/kantong/internal/model"
)

// SaveCategory upserts a category by its identifier. Names are unique per
// user case-insensitively; saving a second category with a clashing name
// returns common.ErrDuplicateEntry.
func (s *SQLiteStore) SaveCategory(ctx context.Context, cat model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(&cat); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO categories (id, user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			updated_at = excluded.updated_at`

	_, err = db.ExecContext(ctx, query,
		cat.ID, cat.UserID, cat.Name, cat.CreatedAt.UTC(), cat.UpdatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: category name %q already exists for user", common.ErrDuplicateEntry, cat.Name)
		}
		return fmt.Errorf("failed to save category %s: %w", cat.ID, err)
	}

	slog.Debug("saved category", "id", cat.ID, "name", cat.Name)
	return nil
}

// GetCategoriesByUser returns all cached categories owned by userID.
func (s *SQLiteStore) GetCategoriesByUser(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	db := s.reader(ctx)
	if db == nil {
		return []model.Category{}, nil
	}

	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM categories
		WHERE user_id = ?
		ORDER BY name COLLATE NOCASE`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cats []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return cats, nil
}

// DeleteCategory removes a cached category by identifier. Deleting an absent
// row is a no-op.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}

	return nil
}
