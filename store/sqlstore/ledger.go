package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/points-engine/bank"
)

// =============================================================================
// LEDGER STORE
// =============================================================================

const transactionColumns = `id, member_id, family_id, seq, title, points, kind, category,
	reference_id, counterparty_id, metadata_json, created_at`

// AppendTransaction inserts tx with the member's next seq. A racing append
// that computed the same seq fails the unique index and is reported as
// bank.ErrConcurrencyConflict.
func (c *conn) AppendTransaction(ctx context.Context, tx bank.Transaction) (bank.Transaction, error) {
	var metadata sql.NullString
	if len(tx.Metadata) > 0 {
		b, err := json.Marshal(tx.Metadata)
		if err != nil {
			return bank.Transaction{}, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	err := c.queryRow(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions WHERE member_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`,
		string(tx.ID),
		string(tx.MemberID),
		string(tx.FamilyID),
		string(tx.MemberID),
		tx.Title,
		tx.Points,
		string(tx.Kind),
		tx.Category,
		tx.ReferenceID,
		string(tx.CounterpartyID),
		metadata,
		formatTime(tx.CreatedAt),
	).Scan(&tx.Seq)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "seq") {
				return bank.Transaction{}, fmt.Errorf("append for %s: %w", tx.MemberID, bank.ErrConcurrencyConflict)
			}
			return bank.Transaction{}, fmt.Errorf("append %s: %w", tx.ID, bank.ErrDuplicateTransaction)
		}
		return bank.Transaction{}, mapError(fmt.Errorf("append transaction: %w", err))
	}
	return tx, nil
}

// LoadTransactions returns a member's ledger ordered by seq.
func (c *conn) LoadTransactions(ctx context.Context, memberID bank.MemberID) ([]bank.Transaction, error) {
	rows, err := c.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE member_id = ? ORDER BY seq`, string(memberID))
	if err != nil {
		return nil, mapError(fmt.Errorf("load transactions: %w", err))
	}
	defer rows.Close()

	var txs []bank.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// GetTransaction retrieves a transaction by id.
func (c *conn) GetTransaction(ctx context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	rows, err := c.query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, string(id))
	if err != nil {
		return nil, mapError(fmt.Errorf("get transaction: %w", err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, bank.ErrTransactionNotFound
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// DeleteTransactions removes rows by id and returns how many were deleted.
func (c *conn) DeleteTransactions(ctx context.Context, ids []bank.TransactionID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	res, err := c.exec(ctx, `DELETE FROM transactions WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, mapError(fmt.Errorf("delete transactions: %w", err))
	}
	return res.RowsAffected()
}

func scanTransaction(rows *sql.Rows) (bank.Transaction, error) {
	var (
		tx                                 bank.Transaction
		id, memberID, familyID, kind, cpty string
		metadata                           sql.NullString
		createdAt                          string
	)
	err := rows.Scan(&id, &memberID, &familyID, &tx.Seq, &tx.Title, &tx.Points, &kind,
		&tx.Category, &tx.ReferenceID, &cpty, &metadata, &createdAt)
	if err != nil {
		return bank.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	tx.ID = bank.TransactionID(id)
	tx.MemberID = bank.MemberID(memberID)
	tx.FamilyID = bank.FamilyID(familyID)
	tx.Kind = bank.Kind(kind)
	tx.CounterpartyID = bank.MemberID(cpty)
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &tx.Metadata); err != nil {
			return bank.Transaction{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return bank.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	return tx, nil
}
