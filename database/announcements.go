package database

import (
	"nightboard/models"
	"nightboard/utils"
)

func (ds *DatabaseService) CreateAnnouncement(title, content string, authorID int64) (int64, error) {
	res, err := ds.DB.Exec("INSERT INTO announcements (title, content, author_id, created_at) VALUES (?, ?, ?, ?)",
		title, content, authorID, utils.GetSQLTime())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAnnouncements returns announcements newest first. limit <= 0 means all.
func (ds *DatabaseService) ListAnnouncements(limit int) ([]models.Announcement, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := ds.DB.Query(`
		SELECT a.id, a.title, a.content, a.author_id, u.username, a.created_at
		FROM announcements a JOIN users u ON u.id = a.author_id
		ORDER BY a.created_at DESC, a.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListAnnouncements", "error", err)
		}
	}()

	var out []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &a.AuthorName, &a.CreatedAt); err != nil {
			ds.logger.Error("Failed to scan announcement row", "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (ds *DatabaseService) DeleteAnnouncement(actorID, id int64) error {
	tx, rollback, err := ds.begin("DeleteAnnouncement")
	if err != nil {
		return err
	}
	defer rollback()

	res, err := tx.Exec("DELETE FROM announcements WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := LogAdminAction(tx, actorID, "delete_announcement", id, ""); err != nil {
		return err
	}
	return tx.Commit()
}
