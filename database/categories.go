package database

import (
	"database/sql"
	"errors"
	"fmt"

	"nightboard/models"
)

// ListCategories returns every category by name with its post count.
func (ds *DatabaseService) ListCategories() ([]models.Category, error) {
	rows, err := ds.DB.Query(`
		SELECT c.id, c.name, c.slug, (SELECT COUNT(*) FROM posts p WHERE p.category_id = c.id)
		FROM categories c ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListCategories", "error", err)
		}
	}()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.PostCount); err != nil {
			ds.logger.Error("Failed to scan category row", "error", err)
			continue
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (ds *DatabaseService) GetCategoryBySlug(slug string) (*models.Category, error) {
	return ds.getCategory("slug = ?", slug)
}

func (ds *DatabaseService) GetCategory(id int64) (*models.Category, error) {
	return ds.getCategory("id = ?", id)
}

func (ds *DatabaseService) getCategory(where string, arg any) (*models.Category, error) {
	var c models.Category
	err := ds.DB.QueryRow("SELECT id, name, slug FROM categories WHERE "+where, arg).Scan(&c.ID, &c.Name, &c.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (ds *DatabaseService) CreateCategory(actorID int64, name, slug string) (int64, error) {
	tx, rollback, err := ds.begin("CreateCategory")
	if err != nil {
		return 0, err
	}
	defer rollback()

	res, err := tx.Exec("INSERT INTO categories (name, slug) VALUES (?, ?)", name, slug)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrCategoryExists
		}
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := LogAdminAction(tx, actorID, "create_category", id, name); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func (ds *DatabaseService) UpdateCategory(actorID, id int64, name, slug string) error {
	tx, rollback, err := ds.begin("UpdateCategory")
	if err != nil {
		return err
	}
	defer rollback()

	res, err := tx.Exec("UPDATE categories SET name = ?, slug = ? WHERE id = ?", name, slug, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := LogAdminAction(tx, actorID, "update_category", id, name); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCategory removes a category and, through the cascade, its posts.
// The returned paths are attachment files to remove after the commit.
func (ds *DatabaseService) DeleteCategory(actorID, id int64) ([]string, error) {
	tx, rollback, err := ds.begin("DeleteCategory")
	if err != nil {
		return nil, err
	}
	defer rollback()

	files, err := attachmentFilesTx(tx, "SELECT a.path, a.thumbnail_path FROM attachments a JOIN posts p ON p.id = a.post_id WHERE p.category_id = ?", id)
	if err != nil {
		return nil, err
	}
	res, err := tx.Exec("DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := LogAdminAction(tx, actorID, "delete_category", id, ""); err != nil {
		return nil, err
	}
	return files, tx.Commit()
}
