package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/points-engine/bank"
)

const badgeColumns = `id, member_id, family_id, condition_key, title, icon, awarded_at, ticket_used, ticket_used_at`

// InsertBadge relies on the (member_id, condition_key) unique constraint;
// a duplicate is a no-op reported as inserted=false.
func (c *conn) InsertBadge(ctx context.Context, b bank.Badge) (bool, error) {
	res, err := c.exec(ctx, `
		INSERT INTO badges (`+badgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (member_id, condition_key) DO NOTHING`,
		string(b.ID), string(b.MemberID), string(b.FamilyID), b.ConditionKey, b.Title, b.Icon,
		formatTime(b.AwardedAt), boolInt(b.TicketUsed), formatTimePtr(b.TicketUsedAt),
	)
	if err != nil {
		return false, mapError(fmt.Errorf("insert badge: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListBadges returns a member's badges in award order.
func (c *conn) ListBadges(ctx context.Context, memberID bank.MemberID) ([]bank.Badge, error) {
	rows, err := c.query(ctx, `SELECT `+badgeColumns+` FROM badges
		WHERE member_id = ? ORDER BY awarded_at, id`, string(memberID))
	if err != nil {
		return nil, mapError(fmt.Errorf("list badges: %w", err))
	}
	defer rows.Close()

	var out []bank.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBadge returns bank.ErrBadgeNotFound if the badge doesn't exist.
func (c *conn) GetBadge(ctx context.Context, id bank.BadgeID) (*bank.Badge, error) {
	rows, err := c.query(ctx, `SELECT `+badgeColumns+` FROM badges WHERE id = ?`, string(id))
	if err != nil {
		return nil, mapError(fmt.Errorf("get badge: %w", err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, bank.ErrBadgeNotFound
	}
	b, err := scanBadge(rows)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UseTicket flips ticket_used only if it is still unset.
func (c *conn) UseTicket(ctx context.Context, id bank.BadgeID, at time.Time) error {
	res, err := c.exec(ctx, `UPDATE badges SET ticket_used = 1, ticket_used_at = ?
		WHERE id = ? AND ticket_used = 0`, formatTime(at), string(id))
	if err != nil {
		return mapError(fmt.Errorf("use ticket: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := c.GetBadge(ctx, id); err != nil {
		return err
	}
	return bank.ErrTicketAlreadyUsed
}

func scanBadge(rows *sql.Rows) (bank.Badge, error) {
	var (
		b                      bank.Badge
		id, memberID, familyID string
		awardedAt              string
		used                   int
		usedAt                 sql.NullString
	)
	err := rows.Scan(&id, &memberID, &familyID, &b.ConditionKey, &b.Title, &b.Icon, &awardedAt, &used, &usedAt)
	if err != nil {
		return bank.Badge{}, fmt.Errorf("scan badge: %w", err)
	}
	b.ID, b.MemberID, b.FamilyID = bank.BadgeID(id), bank.MemberID(memberID), bank.FamilyID(familyID)
	b.TicketUsed = used != 0
	if b.AwardedAt, err = parseTime(awardedAt); err != nil {
		return bank.Badge{}, err
	}
	if b.TicketUsedAt, err = parseTimePtr(usedAt); err != nil {
		return bank.Badge{}, err
	}
	return b, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
