package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/points-engine/bank"
)

const rewardColumns = `id, family_id, title, description, category, cost, status,
	proposed_by, decided_by, decided_at, created_at`

// SaveReward inserts or replaces a reward row.
func (c *conn) SaveReward(ctx context.Context, r bank.Reward) error {
	_, err := c.exec(ctx, `
		INSERT INTO rewards (`+rewardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			cost = excluded.cost,
			status = excluded.status,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at`,
		string(r.ID), string(r.FamilyID), r.Title, r.Description, r.Category, r.Cost, string(r.Status),
		string(r.ProposedBy), string(r.DecidedBy), formatTimePtr(r.DecidedAt), formatTime(r.CreatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("save reward: %w", err))
	}
	return nil
}

// GetReward returns bank.ErrRewardNotFound if the reward doesn't exist.
func (c *conn) GetReward(ctx context.Context, id bank.RewardID) (*bank.Reward, error) {
	rows, err := c.query(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = ?`, string(id))
	if err != nil {
		return nil, mapError(fmt.Errorf("get reward: %w", err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, bank.ErrRewardNotFound
	}
	r, err := scanReward(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRewards returns a family's rewards, optionally filtered by status.
func (c *conn) ListRewards(ctx context.Context, familyID bank.FamilyID, statuses ...bank.RewardStatus) ([]bank.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE family_id = ?`
	args := []any{string(familyID)}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("list rewards: %w", err))
	}
	defer rows.Close()

	var out []bank.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransitionReward is a compare-and-set on status.
func (c *conn) TransitionReward(ctx context.Context, id bank.RewardID, from, to bank.RewardStatus, actor bank.MemberID, at time.Time) error {
	res, err := c.exec(ctx, `UPDATE rewards SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = ?`,
		string(to), string(actor), formatTime(at), string(id), string(from))
	if err != nil {
		return mapError(fmt.Errorf("transition reward: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := c.GetReward(ctx, id); err != nil {
		return err
	}
	return bank.ErrInvalidTransition
}

func scanReward(rows *sql.Rows) (bank.Reward, error) {
	var (
		r                                       bank.Reward
		id, familyID, status, proposed, decided string
		decidedAt                               sql.NullString
		createdAt                               string
	)
	err := rows.Scan(&id, &familyID, &r.Title, &r.Description, &r.Category, &r.Cost, &status,
		&proposed, &decided, &decidedAt, &createdAt)
	if err != nil {
		return bank.Reward{}, fmt.Errorf("scan reward: %w", err)
	}
	r.ID = bank.RewardID(id)
	r.FamilyID = bank.FamilyID(familyID)
	r.Status = bank.RewardStatus(status)
	r.ProposedBy = bank.MemberID(proposed)
	r.DecidedBy = bank.MemberID(decided)
	if r.DecidedAt, err = parseTimePtr(decidedAt); err != nil {
		return bank.Reward{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return bank.Reward{}, err
	}
	return r, nil
}
