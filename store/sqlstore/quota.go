package sqlstore

import (
	"context"
	"fmt"

	"github.com/warp/points-engine/bank"
)

// QuotaUsed returns the day's count; a missing row reads as zero.
func (c *conn) QuotaUsed(ctx context.Context, memberID bank.MemberID, day bank.Day) (int, error) {
	var used int
	err := c.queryRow(ctx, `SELECT used_count FROM quota_counters WHERE member_id = ? AND quota_date = ?`,
		string(memberID), string(day)).Scan(&used)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(fmt.Errorf("read quota: %w", err))
	}
	return used, nil
}

// IncrementQuota is a single conditional upsert: the row is created at 1 or
// incremented only while below cap. No row returned means the cap was hit.
func (c *conn) IncrementQuota(ctx context.Context, memberID bank.MemberID, day bank.Day, cap int) (int, error) {
	if cap <= 0 {
		return 0, &bank.QuotaExhaustedError{MemberID: memberID, Day: day, Cap: cap}
	}
	var used int
	err := c.queryRow(ctx, `
		INSERT INTO quota_counters (member_id, quota_date, used_count)
		VALUES (?, ?, 1)
		ON CONFLICT (member_id, quota_date) DO UPDATE
			SET used_count = quota_counters.used_count + 1
			WHERE quota_counters.used_count < ?
		RETURNING used_count`,
		string(memberID), string(day), cap,
	).Scan(&used)
	if isNoRows(err) {
		return cap, &bank.QuotaExhaustedError{MemberID: memberID, Day: day, Cap: cap}
	}
	if err != nil {
		return 0, mapError(fmt.Errorf("increment quota: %w", err))
	}
	return used, nil
}

// PruneQuota deletes counters for days before the given day.
func (c *conn) PruneQuota(ctx context.Context, before bank.Day) (int64, error) {
	res, err := c.exec(ctx, `DELETE FROM quota_counters WHERE quota_date < ?`, string(before))
	if err != nil {
		return 0, mapError(fmt.Errorf("prune quota: %w", err))
	}
	return res.RowsAffected()
}
