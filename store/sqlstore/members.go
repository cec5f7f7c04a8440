package sqlstore

import (
	"context"
	"fmt"

	"github.com/warp/points-engine/bank"
)

// SaveMember inserts or updates a member.
func (c *conn) SaveMember(ctx context.Context, m bank.Member) error {
	_, err := c.exec(ctx, `
		INSERT INTO members (id, family_id, name, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			role = excluded.role`,
		string(m.ID), string(m.FamilyID), m.Name, string(m.Role), formatTime(m.CreatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("save member: %w", err))
	}
	return nil
}

// GetMember returns bank.ErrMemberNotFound if the member doesn't exist.
func (c *conn) GetMember(ctx context.Context, id bank.MemberID) (*bank.Member, error) {
	var (
		m                      bank.Member
		mid, fid, role, create string
	)
	err := c.queryRow(ctx, `SELECT id, family_id, name, role, created_at FROM members WHERE id = ?`, string(id)).
		Scan(&mid, &fid, &m.Name, &role, &create)
	if isNoRows(err) {
		return nil, fmt.Errorf("%s: %w", id, bank.ErrMemberNotFound)
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("get member: %w", err))
	}
	m.ID, m.FamilyID, m.Role = bank.MemberID(mid), bank.FamilyID(fid), bank.Role(role)
	if m.CreatedAt, err = parseTime(create); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns a family's members in creation order.
func (c *conn) ListMembers(ctx context.Context, familyID bank.FamilyID) ([]bank.Member, error) {
	rows, err := c.query(ctx, `SELECT id, family_id, name, role, created_at FROM members
		WHERE family_id = ? ORDER BY created_at, id`, string(familyID))
	if err != nil {
		return nil, mapError(fmt.Errorf("list members: %w", err))
	}
	defer rows.Close()

	var out []bank.Member
	for rows.Next() {
		var (
			m                      bank.Member
			mid, fid, role, create string
		)
		if err := rows.Scan(&mid, &fid, &m.Name, &role, &create); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.ID, m.FamilyID, m.Role = bank.MemberID(mid), bank.FamilyID(fid), bank.Role(role)
		if m.CreatedAt, err = parseTime(create); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
