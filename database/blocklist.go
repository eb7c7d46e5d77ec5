package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nightboard/config"
	"nightboard/models"
	"nightboard/utils"
)

// IsIPBlocked looks up an exact blocklist entry for ip, compared in its
// normalized form. A lookup failure is returned, never read as "not blocked".
func (ds *DatabaseService) IsIPBlocked(ip string) (models.BlockedIP, bool, error) {
	var b models.BlockedIP
	if n := utils.NormalizeIP(ip); n != "" {
		ip = n
	}
	if ip == "" {
		return b, false, nil
	}
	err := ds.DB.QueryRow(`
		SELECT b.id, b.ip_address, b.reason, b.blocked_at, b.blocked_by, u.username
		FROM blocked_ips b LEFT JOIN users u ON u.id = b.blocked_by
		WHERE b.ip_address = ?`, ip).Scan(&b.ID, &b.IPAddress, &b.Reason, &b.BlockedAt, &b.BlockedByID, &b.BlockedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, fmt.Errorf("check blocked ip %s: %w", ip, err)
	}
	return b, true, nil
}

// BlockIP adds ip to the blocklist unless it is already there.
func (ds *DatabaseService) BlockIP(actorID int64, ip, reason string) (bool, error) {
	tx, rollback, err := ds.begin("BlockIP")
	if err != nil {
		return false, err
	}
	defer rollback()

	created, err := blockIPTx(tx, actorID, ip, reason)
	if err != nil {
		return false, err
	}
	if created {
		if err := LogAdminAction(tx, actorID, "block_ip", 0, fmt.Sprintf("%s: %s", ip, reason)); err != nil {
			return false, err
		}
	}
	return created, tx.Commit()
}

// blockIPTx is get-or-create on the IP; existing entries keep their reason.
func blockIPTx(tx *sql.Tx, actorID int64, ip, reason string) (bool, error) {
	if reason == "" {
		reason = config.DefaultBlockReason
	}
	blocker := sql.NullInt64{Int64: actorID, Valid: actorID != 0}
	res, err := tx.Exec("INSERT INTO blocked_ips (ip_address, reason, blocked_at, blocked_by) VALUES (?, ?, ?, ?) ON CONFLICT(ip_address) DO NOTHING",
		ip, reason, utils.GetSQLTime(), blocker)
	if err != nil {
		return false, fmt.Errorf("failed to block ip %s: %w", ip, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UnblockIPs lifts the given blocklist entries and returns how many were removed.
func (ds *DatabaseService) UnblockIPs(actorID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, rollback, err := ds.begin("UnblockIPs")
	if err != nil {
		return 0, err
	}
	defer rollback()

	res, err := tx.Exec("DELETE FROM blocked_ips WHERE id IN ("+placeholders(len(ids))+")", int64Args(ids)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := LogAdminAction(tx, actorID, "unblock_ip", 0, fmt.Sprintf("%d entries lifted", n)); err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

func blocklistWhere(search string) (string, []any) {
	if s := strings.TrimSpace(search); s != "" {
		p := likePattern(s)
		return ` WHERE (b.ip_address LIKE ? ESCAPE '\' OR b.reason LIKE ? ESCAPE '\')`, []any{p, p}
	}
	return "", nil
}

func (ds *DatabaseService) CountBlockedIPs(search string) (int, error) {
	where, args := blocklistWhere(search)
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM blocked_ips b"+where, args...).Scan(&n)
	return n, err
}

// ListBlockedIPs returns blocklist entries newest first.
func (ds *DatabaseService) ListBlockedIPs(search string, page, pageSize int) ([]models.BlockedIP, error) {
	where, args := blocklistWhere(search)
	args = append(args, pageSize, offset(page, pageSize))
	rows, err := ds.DB.Query(`
		SELECT b.id, b.ip_address, b.reason, b.blocked_at, b.blocked_by, u.username
		FROM blocked_ips b LEFT JOIN users u ON u.id = b.blocked_by`+where+`
		ORDER BY b.blocked_at DESC, b.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListBlockedIPs", "error", err)
		}
	}()

	var out []models.BlockedIP
	for rows.Next() {
		var b models.BlockedIP
		if err := rows.Scan(&b.ID, &b.IPAddress, &b.Reason, &b.BlockedAt, &b.BlockedByID, &b.BlockedBy); err != nil {
			ds.logger.Error("Failed to scan blocked ip row", "error", err)
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
