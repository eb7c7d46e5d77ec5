package database

import (
	"fmt"
	"strings"

	"nightboard/models"
)

// BulkAction names one of the admin console's bulk operations on profiles.
type BulkAction string

const (
	BlockIPOnly          BulkAction = "block_ip_only"
	DeleteUserOnly       BulkAction = "delete_user_only"
	DeleteUserAndBlockIP BulkAction = "delete_user_and_block_ip"
)

func (a BulkAction) blocks() bool  { return a == BlockIPOnly || a == DeleteUserAndBlockIP }
func (a BulkAction) deletes() bool { return a == DeleteUserOnly || a == DeleteUserAndBlockIP }

// Valid reports whether a names a known bulk action.
func (a BulkAction) Valid() bool { return a.blocks() || a.deletes() }

func (a BulkAction) blockReason(username string) string {
	if a == DeleteUserAndBlockIP {
		return fmt.Sprintf("User %s removed; re-registration blocked", username)
	}
	return fmt.Sprintf("IP of user %s blocked", username)
}

type bulkTarget struct {
	userID   int64
	username string
	ip       string
}

// ApplyBulkAction runs action over the selected profiles in one transaction.
// Blocking happens before deletion so the registration IP is still known.
// Only newly created blocklist entries are counted. The acting admin's own
// account is never deleted.
func (ds *DatabaseService) ApplyBulkAction(actorID int64, action BulkAction, profileIDs []int64) (*models.BulkResult, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown bulk action %q", action)
	}
	result := &models.BulkResult{}
	if len(profileIDs) == 0 {
		return result, nil
	}

	tx, rollback, err := ds.begin("ApplyBulkAction")
	if err != nil {
		return nil, err
	}
	defer rollback()

	rows, err := tx.Query(`SELECT u.id, u.username, p.ip_address FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE p.id IN (`+placeholders(len(profileIDs))+`) ORDER BY p.id`, int64Args(profileIDs)...)
	if err != nil {
		return nil, err
	}
	var targets []bulkTarget
	for rows.Next() {
		var t bulkTarget
		if err := rows.Scan(&t.userID, &t.username, &t.ip); err != nil {
			rows.Close()
			return nil, err
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range targets {
		if action.blocks() && t.ip != "" {
			created, err := blockIPTx(tx, actorID, t.ip, action.blockReason(t.username))
			if err != nil {
				return nil, err
			}
			if created {
				result.IPsBlocked++
			}
		}
		if action.deletes() {
			if t.userID == actorID {
				ds.logger.Warn("Refusing to delete the acting administrator", "user_id", actorID)
				continue
			}
			posts, files, err := deleteUserTx(tx, t.userID)
			if err != nil {
				return nil, err
			}
			result.UsersDeleted++
			result.PostsDeleted += posts
			result.Files = append(result.Files, files...)
		}
	}

	details := fmt.Sprintf("users=%d posts=%d ips=%d", result.UsersDeleted, result.PostsDeleted, result.IPsBlocked)
	if err := LogAdminAction(tx, actorID, string(action), 0, details); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func profilesWhere(search string) (string, []any) {
	if s := strings.TrimSpace(search); s != "" {
		p := likePattern(s)
		return ` WHERE (u.username LIKE ? ESCAPE '\' OR u.email LIKE ? ESCAPE '\' OR p.ip_address LIKE ? ESCAPE '\' OR p.last_login_ip LIKE ? ESCAPE '\')`,
			[]any{p, p, p, p}
	}
	return "", nil
}

func (ds *DatabaseService) CountProfiles(search string) (int, error) {
	where, args := profilesWhere(search)
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM profiles p JOIN users u ON u.id = p.user_id"+where, args...).Scan(&n)
	return n, err
}

// ListProfiles returns profiles newest first with post counts and block status.
func (ds *DatabaseService) ListProfiles(search string, page, pageSize int) ([]models.ProfileRow, error) {
	where, args := profilesWhere(search)
	args = append(args, pageSize, offset(page, pageSize))
	rows, err := ds.DB.Query(`
		SELECT p.id, p.user_id, p.ip_address, p.last_login_ip, p.joined_at, u.username, u.email,
		       (SELECT COUNT(*) FROM posts WHERE author_id = u.id),
		       EXISTS (SELECT 1 FROM blocked_ips b WHERE b.ip_address = p.ip_address AND p.ip_address != '')
		FROM profiles p JOIN users u ON u.id = p.user_id`+where+`
		ORDER BY p.joined_at DESC, p.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListProfiles", "error", err)
		}
	}()

	var out []models.ProfileRow
	for rows.Next() {
		var r models.ProfileRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.IPAddress, &r.LastLoginIP, &r.JoinedAt, &r.Username, &r.Email, &r.PostCount, &r.IPBlocked); err != nil {
			ds.logger.Error("Failed to scan profile row", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ds *DatabaseService) CountAdminActions() (int, error) {
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM admin_actions").Scan(&n)
	return n, err
}

// ListAdminActions returns the action log newest first.
func (ds *DatabaseService) ListAdminActions(page, pageSize int) ([]models.AdminAction, error) {
	rows, err := ds.DB.Query(`
		SELECT l.id, l.timestamp, l.actor_id, COALESCE(u.username, '#' || l.actor_id), l.action, l.target_id, l.details
		FROM admin_actions l LEFT JOIN users u ON u.id = l.actor_id
		ORDER BY l.timestamp DESC, l.id DESC LIMIT ? OFFSET ?`, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListAdminActions", "error", err)
		}
	}()

	var out []models.AdminAction
	for rows.Next() {
		var a models.AdminAction
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.ActorID, &a.ActorName, &a.Action, &a.TargetID, &a.Details); err != nil {
			ds.logger.Error("Failed to scan admin action row", "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
