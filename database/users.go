package database

import (
	"database/sql"
	"errors"
	"fmt"

	"nightboard/models"
	"nightboard/utils"
)

const userColumns = "id, username, email, password_hash, is_superuser, is_staff, is_active, date_joined, last_login"

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsSuperuser, &u.IsStaff, &u.IsActive, &u.DateJoined, &u.LastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user and its profile in one transaction. The profile
// records ip as both the registration and the last-login address.
func (ds *DatabaseService) CreateUser(username, email, passwordHash, ip string, superuser bool) (*models.User, error) {
	tx, rollback, err := ds.begin("CreateUser")
	if err != nil {
		return nil, err
	}
	defer rollback()

	now := utils.GetSQLTime()
	res, err := tx.Exec(`INSERT INTO users (username, email, password_hash, is_superuser, is_staff, is_active, date_joined) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		username, email, passwordHash, superuser, superuser, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec("INSERT INTO profiles (user_id, ip_address, last_login_ip, joined_at) VALUES (?, ?, ?, ?)", id, ip, ip, now); err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsSuperuser:  superuser,
		IsStaff:      superuser,
		IsActive:     true,
		DateJoined:   now,
	}, nil
}

// EnsureAdmin creates a superuser named username unless one already exists.
func (ds *DatabaseService) EnsureAdmin(username, email, password string) (bool, error) {
	if _, err := ds.GetUserByUsername(username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := ds.CreateUser(username, email, hash, "", true); err != nil {
		return false, err
	}
	ds.logger.Info("Bootstrap administrator created", "username", username)
	return true, nil
}

func (ds *DatabaseService) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

func (ds *DatabaseService) GetUserByID(id int64) (*models.User, error) {
	return scanUser(ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetProfile returns the profile owned by userID.
func (ds *DatabaseService) GetProfile(userID int64) (*models.Profile, error) {
	var p models.Profile
	err := ds.DB.QueryRow("SELECT id, user_id, ip_address, last_login_ip, joined_at FROM profiles WHERE user_id = ?", userID).
		Scan(&p.ID, &p.UserID, &p.IPAddress, &p.LastLoginIP, &p.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordLogin stamps the user's last login and the profile's last-login IP.
// A user without a profile gets one created on the spot; created reports that.
func (ds *DatabaseService) RecordLogin(userID int64, ip string) (created bool, err error) {
	tx, rollback, err := ds.begin("RecordLogin")
	if err != nil {
		return false, err
	}
	defer rollback()

	now := utils.GetSQLTime()
	if _, err := tx.Exec("UPDATE users SET last_login = ? WHERE id = ?", now, userID); err != nil {
		return false, fmt.Errorf("failed to update last login: %w", err)
	}
	res, err := tx.Exec("UPDATE profiles SET last_login_ip = ? WHERE user_id = ?", ip, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.Exec("INSERT INTO profiles (user_id, ip_address, last_login_ip, joined_at) VALUES (?, ?, ?, ?)", userID, ip, ip, now); err != nil {
			return false, fmt.Errorf("failed to create missing profile: %w", err)
		}
		created = true
	}
	return created, tx.Commit()
}

func (ds *DatabaseService) CountUsers() (int, error) {
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// ListUsers returns users newest first.
func (ds *DatabaseService) ListUsers(page, pageSize int) ([]models.User, error) {
	rows, err := ds.DB.Query("SELECT "+userColumns+" FROM users ORDER BY date_joined DESC, id DESC LIMIT ? OFFSET ?", pageSize, offset(page, pageSize))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListUsers", "error", err)
		}
	}()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			ds.logger.Error("Failed to scan user row", "error", err)
			continue
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// userFlags maps toggleable flag names to their columns.
var userFlags = map[string]string{
	"superuser": "is_superuser",
	"staff":     "is_staff",
	"active":    "is_active",
}

// ToggleUserFlag flips one of the superuser/staff/active flags.
func (ds *DatabaseService) ToggleUserFlag(actorID, userID int64, flag string) error {
	column, ok := userFlags[flag]
	if !ok {
		return fmt.Errorf("unknown user flag %q", flag)
	}
	tx, rollback, err := ds.begin("ToggleUserFlag")
	if err != nil {
		return err
	}
	defer rollback()

	res, err := tx.Exec(fmt.Sprintf("UPDATE users SET %[1]s = NOT %[1]s WHERE id = ?", column), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if column == "is_active" {
		if _, err := tx.Exec("DELETE FROM sessions WHERE user_id = ? AND (SELECT is_active FROM users WHERE id = ?) = 0", userID, userID); err != nil {
			return err
		}
	}
	if err := LogAdminAction(tx, actorID, "toggle_"+flag, userID, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteUser removes a user with everything they own. The returned paths are
// the stored attachment files, to be removed after the commit.
func (ds *DatabaseService) DeleteUser(actorID, userID int64) (posts int, files []string, err error) {
	tx, rollback, err := ds.begin("DeleteUser")
	if err != nil {
		return 0, nil, err
	}
	defer rollback()

	var username string
	if err := tx.QueryRow("SELECT username FROM users WHERE id = ?", userID).Scan(&username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, err
	}
	posts, files, err = deleteUserTx(tx, userID)
	if err != nil {
		return 0, nil, err
	}
	if err := LogAdminAction(tx, actorID, "delete_user", userID, fmt.Sprintf("%s (%d posts)", username, posts)); err != nil {
		return 0, nil, err
	}
	return posts, files, tx.Commit()
}

// deleteUserTx deletes the user row; posts, attachments, profile and sessions
// follow through ON DELETE CASCADE.
func deleteUserTx(tx *sql.Tx, userID int64) (int, []string, error) {
	var posts int
	if err := tx.QueryRow("SELECT COUNT(*) FROM posts WHERE author_id = ?", userID).Scan(&posts); err != nil {
		return 0, nil, err
	}
	files, err := attachmentFilesTx(tx, "SELECT a.path, a.thumbnail_path FROM attachments a JOIN posts p ON p.id = a.post_id WHERE p.author_id = ?", userID)
	if err != nil {
		return 0, nil, err
	}
	if _, err := tx.Exec("DELETE FROM users WHERE id = ?", userID); err != nil {
		return 0, nil, fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	return posts, files, nil
}
