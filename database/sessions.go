package database

import (
	"time"

	"nightboard/models"
	"nightboard/utils"

	"github.com/google/uuid"
)

// CreateSession issues a new session token for userID valid for ttl.
func (ds *DatabaseService) CreateSession(userID int64, ttl time.Duration) (*models.Session, error) {
	now := utils.GetSQLTime()
	s := &models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := ds.DB.Exec("INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		s.Token, s.UserID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSessionUser resolves a live session token to an active user.
func (ds *DatabaseService) GetSessionUser(token string) (*models.User, error) {
	return scanUser(ds.DB.QueryRow(`
		SELECT u.id, u.username, u.email, u.password_hash, u.is_superuser, u.is_staff, u.is_active, u.date_joined, u.last_login
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ? AND u.is_active = 1`, token, utils.GetSQLTime()))
}

func (ds *DatabaseService) DeleteSession(token string) error {
	_, err := ds.DB.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// PruneSessions deletes sessions that expired before now.
func (ds *DatabaseService) PruneSessions(now time.Time) (int64, error) {
	res, err := ds.DB.Exec("DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
