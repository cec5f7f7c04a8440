package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/points-engine/bank"
)

// RecordDraw persists a resolved draw. A second draw for the same badge
// violates idx_draws_badge and is reported as bank.ErrTicketAlreadyUsed.
func (c *conn) RecordDraw(ctx context.Context, d bank.Draw) error {
	_, err := c.exec(ctx, `
		INSERT INTO lottery_draws (id, member_id, family_id, source, badge_id, tier, points_won,
			cost_transaction_id, transaction_id, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(d.ID), string(d.MemberID), string(d.FamilyID), string(d.Source), nullString(string(d.BadgeID)),
		d.Tier, d.PointsWon, string(d.CostTransactionID), string(d.TransactionID), string(d.State),
		formatTime(d.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("draw for badge %s: %w", d.BadgeID, bank.ErrTicketAlreadyUsed)
	}
	if err != nil {
		return mapError(fmt.Errorf("record draw: %w", err))
	}
	return nil
}

// ListDraws returns a member's draws oldest first.
func (c *conn) ListDraws(ctx context.Context, memberID bank.MemberID) ([]bank.Draw, error) {
	rows, err := c.query(ctx, `
		SELECT id, member_id, family_id, source, badge_id, tier, points_won,
			cost_transaction_id, transaction_id, state, created_at
		FROM lottery_draws WHERE member_id = ? ORDER BY created_at, id`, string(memberID))
	if err != nil {
		return nil, mapError(fmt.Errorf("list draws: %w", err))
	}
	defer rows.Close()

	var out []bank.Draw
	for rows.Next() {
		var (
			d                                 bank.Draw
			id, member, family, source, state string
			badgeID                           sql.NullString
			costTx, creditTx, createdAt       string
		)
		if err := rows.Scan(&id, &member, &family, &source, &badgeID, &d.Tier, &d.PointsWon,
			&costTx, &creditTx, &state, &createdAt); err != nil {
			return nil, fmt.Errorf("scan draw: %w", err)
		}
		d.ID = bank.DrawID(id)
		d.MemberID = bank.MemberID(member)
		d.FamilyID = bank.FamilyID(family)
		d.Source = bank.DrawSource(source)
		d.BadgeID = bank.BadgeID(badgeID.String)
		d.CostTransactionID = bank.TransactionID(costTx)
		d.TransactionID = bank.TransactionID(creditTx)
		d.State = bank.DrawState(state)
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
