package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nightboard/models"
	"nightboard/utils"
)

// PostFilter narrows post listings. Zero values match everything.
type PostFilter struct {
	CategoryID int64
	AuthorID   int64
	Search     string
}

func (f PostFilter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.CategoryID != 0 {
		clauses = append(clauses, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.AuthorID != 0 {
		clauses = append(clauses, "p.author_id = ?")
		args = append(args, f.AuthorID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := likePattern(s)
		clauses = append(clauses, `(p.title LIKE ? ESCAPE '\' OR p.content LIKE ? ESCAPE '\' OR u.username LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const postSelect = `
	SELECT p.id, p.title, p.content, p.category_id, c.name, c.slug, p.author_id, u.username,
	       COALESCE(pr.ip_address, ''), p.is_pinned, p.created_at, p.updated_at,
	       (SELECT COUNT(*) FROM attachments a WHERE a.post_id = p.id)
	FROM posts p
	JOIN categories c ON c.id = p.category_id
	JOIN users u ON u.id = p.author_id
	LEFT JOIN profiles pr ON pr.user_id = p.author_id`

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.CategoryID, &p.CategoryName, &p.CategorySlug,
		&p.AuthorID, &p.AuthorName, &p.AuthorIP, &p.IsPinned, &p.CreatedAt, &p.UpdatedAt, &p.AttachmentCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CountPosts returns how many posts match f.
func (ds *DatabaseService) CountPosts(f PostFilter) (int, error) {
	where, args := f.where()
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM posts p JOIN users u ON u.id = p.author_id"+where, args...).Scan(&n)
	return n, err
}

// ListPosts returns one page of posts, pinned first, then newest first.
func (ds *DatabaseService) ListPosts(f PostFilter, page, pageSize int) ([]models.Post, error) {
	where, args := f.where()
	args = append(args, pageSize, offset(page, pageSize))
	rows, err := ds.DB.Query(postSelect+where+" ORDER BY p.is_pinned DESC, p.created_at DESC, p.id DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListPosts", "error", err)
		}
	}()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			ds.logger.Error("Failed to scan post row", "error", err)
			continue
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// GetPost fetches a post with its attachments in upload order.
func (ds *DatabaseService) GetPost(id int64) (*models.Post, error) {
	p, err := scanPost(ds.DB.QueryRow(postSelect+" WHERE p.id = ?", id))
	if err != nil {
		return nil, err
	}
	p.Attachments, err = ds.listAttachments("WHERE a.post_id = ? ORDER BY a.uploaded_at, a.id", id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePost inserts a post and returns its id.
func (ds *DatabaseService) CreatePost(title, content string, categoryID, authorID int64) (int64, error) {
	now := utils.GetSQLTime()
	res, err := ds.DB.Exec("INSERT INTO posts (title, content, category_id, author_id, is_pinned, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?)",
		title, content, categoryID, authorID, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	return res.LastInsertId()
}

// TogglePin flips the pinned flag on a post.
func (ds *DatabaseService) TogglePin(actorID, postID int64) error {
	tx, rollback, err := ds.begin("TogglePin")
	if err != nil {
		return err
	}
	defer rollback()

	res, err := tx.Exec("UPDATE posts SET is_pinned = NOT is_pinned, updated_at = ? WHERE id = ?", utils.GetSQLTime(), postID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := LogAdminAction(tx, actorID, "toggle_pin", postID, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePost removes a post and its attachment rows. The returned paths are
// the stored files to remove once the transaction has committed.
func (ds *DatabaseService) DeletePost(actorID, postID int64) ([]string, error) {
	tx, rollback, err := ds.begin("DeletePost")
	if err != nil {
		return nil, err
	}
	defer rollback()

	var title string
	if err := tx.QueryRow("SELECT title FROM posts WHERE id = ?", postID).Scan(&title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	files, err := attachmentFilesTx(tx, "SELECT path, thumbnail_path FROM attachments WHERE post_id = ?", postID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM posts WHERE id = ?", postID); err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	if err := LogAdminAction(tx, actorID, "delete_post", postID, title); err != nil {
		return nil, err
	}
	return files, tx.Commit()
}
