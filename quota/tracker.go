/*
Package quota enforces per-member daily usage caps.

PURPOSE:
  Limits how many exchange lottery tickets a member may buy per calendar
  day. Days are computed in the economy's reference timezone, so the quota
  resets at the same instant for every member.

CONCURRENCY:
  ConsumeOne is a single conditional upsert in the store. Two concurrent
  consumers can never push the counter past the cap, even outside a
  member-scoped transaction.

LAZINESS:
  No row exists until the first consumption of the day. A missing row
  reads as zero; stale rows are harmless and may be pruned.
*/
package quota

import (
	"context"
	"errors"

	"github.com/warp/points-engine/bank"
)

// DefaultDailyCap is the number of exchange draws allowed per day.
const DefaultDailyCap = 3

// Tracker reads and consumes a member's daily quota.
type Tracker struct {
	store    bank.QuotaStore
	calendar bank.Calendar
	cap      int
}

// NewTracker returns a tracker with the given daily cap.
func NewTracker(store bank.QuotaStore, calendar bank.Calendar, cap int) *Tracker {
	if cap < 0 {
		cap = 0
	}
	return &Tracker{store: store, calendar: calendar, cap: cap}
}

// WithStore returns a copy of the tracker bound to another store, typically
// the transactional view inside bank.TxStore.WithMemberTx.
func (t *Tracker) WithStore(store bank.QuotaStore) *Tracker {
	c := *t
	c.store = store
	return &c
}

// Cap returns the daily cap.
func (t *Tracker) Cap() int { return t.cap }

// Today returns the current reference-timezone day.
func (t *Tracker) Today() bank.Day { return t.calendar.Today() }

// UsedToday returns today's consumption.
func (t *Tracker) UsedToday(ctx context.Context, memberID bank.MemberID) (int, error) {
	return t.store.QuotaUsed(ctx, memberID, t.Today())
}

// RemainingToday returns max(0, cap - used).
func (t *Tracker) RemainingToday(ctx context.Context, memberID bank.MemberID) (int, error) {
	used, err := t.UsedToday(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return max(0, t.cap-used), nil
}

// ConsumeOne atomically uses one unit of today's quota.
// Returns a *bank.QuotaExhaustedError when the cap is reached.
func (t *Tracker) ConsumeOne(ctx context.Context, memberID bank.MemberID) error {
	day := t.Today()
	if t.cap == 0 {
		return &bank.QuotaExhaustedError{MemberID: memberID, Day: day, Cap: t.cap}
	}
	_, err := t.store.IncrementQuota(ctx, memberID, day, t.cap)
	if errors.Is(err, bank.ErrQuotaExhausted) {
		var qe *bank.QuotaExhaustedError
		if !errors.As(err, &qe) {
			return &bank.QuotaExhaustedError{MemberID: memberID, Day: day, Cap: t.cap}
		}
	}
	return err
}

// Prune removes counters older than retainDays days before today.
func (t *Tracker) Prune(ctx context.Context, retainDays int) (int64, error) {
	if retainDays < 1 {
		retainDays = 1
	}
	return t.store.PruneQuota(ctx, t.Today().AddDays(-retainDays))
}
