package database

import (
	"database/sql"
	"errors"
	"fmt"

	"nightboard/models"
	"nightboard/utils"
)

// AddAttachment records a stored file against a post.
func (ds *DatabaseService) AddAttachment(a *models.Attachment) error {
	if a.UploadedAt.IsZero() {
		a.UploadedAt = utils.GetSQLTime()
	}
	res, err := ds.DB.Exec(`INSERT INTO attachments (post_id, path, storage_key, original_filename, file_size, thumbnail_path, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.PostID, a.Path, a.StorageKey, a.OriginalFilename, a.FileSize, a.ThumbnailPath, a.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (ds *DatabaseService) CountAttachments() (int, error) {
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM attachments").Scan(&n)
	return n, err
}

// ListAttachments returns attachments newest first for the admin console.
func (ds *DatabaseService) ListAttachments(page, pageSize int) ([]models.Attachment, error) {
	return ds.listAttachments("ORDER BY a.uploaded_at DESC, a.id DESC LIMIT ? OFFSET ?", pageSize, offset(page, pageSize))
}

func (ds *DatabaseService) listAttachments(tail string, args ...any) ([]models.Attachment, error) {
	rows, err := ds.DB.Query(`SELECT a.id, a.post_id, a.path, a.storage_key, a.original_filename, a.file_size, a.thumbnail_path, a.uploaded_at
		FROM attachments a `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in listAttachments", "error", err)
		}
	}()

	var out []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.PostID, &a.Path, &a.StorageKey, &a.OriginalFilename, &a.FileSize, &a.ThumbnailPath, &a.UploadedAt); err != nil {
			ds.logger.Error("Failed to scan attachment row", "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAttachment removes one attachment row and returns its stored files.
func (ds *DatabaseService) DeleteAttachment(actorID, id int64) ([]string, error) {
	tx, rollback, err := ds.begin("DeleteAttachment")
	if err != nil {
		return nil, err
	}
	defer rollback()

	var name string
	if err := tx.QueryRow("SELECT original_filename FROM attachments WHERE id = ?", id).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	files, err := attachmentFilesTx(tx, "SELECT path, thumbnail_path FROM attachments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM attachments WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := LogAdminAction(tx, actorID, "delete_attachment", id, name); err != nil {
		return nil, err
	}
	return files, tx.Commit()
}

// attachmentFilesTx collects file and thumbnail paths selected by query,
// which must return (path, thumbnail_path) rows.
func attachmentFilesTx(tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachment files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var path string
		var thumb sql.NullString
		if err := rows.Scan(&path, &thumb); err != nil {
			return nil, err
		}
		files = append(files, path)
		if thumb.Valid && thumb.String != "" {
			files = append(files, thumb.String)
		}
	}
	return files, rows.Err()
}
