// Package store provides an in-memory bank.TxStore for tests and demos.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/warp/points-engine/bank"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements bank.TxStore. A single mutex serializes all access;
// WithMemberTx holds it for the whole unit of work and restores a snapshot
// if the work fails.
type Memory struct {
	mu sync.Mutex
	s  *state
}

func NewMemory() *Memory {
	return &Memory{s: newState()}
}

type quotaKey struct {
	member bank.MemberID
	day    bank.Day
}

type state struct {
	members    map[bank.MemberID]bank.Member
	txs        map[bank.MemberID][]bank.Transaction
	txIndex    map[bank.TransactionID]bank.MemberID
	quota      map[quotaKey]int
	badges     map[bank.MemberID][]bank.Badge
	badgeIndex map[bank.BadgeID]bank.MemberID
	draws      map[bank.MemberID][]bank.Draw
	rewards    map[bank.RewardID]bank.Reward
}

func newState() *state {
	return &state{
		members:    make(map[bank.MemberID]bank.Member),
		txs:        make(map[bank.MemberID][]bank.Transaction),
		txIndex:    make(map[bank.TransactionID]bank.MemberID),
		quota:      make(map[quotaKey]int),
		badges:     make(map[bank.MemberID][]bank.Badge),
		badgeIndex: make(map[bank.BadgeID]bank.MemberID),
		draws:      make(map[bank.MemberID][]bank.Draw),
		rewards:    make(map[bank.RewardID]bank.Reward),
	}
}

func cloneSlices[K comparable, V any](in map[K][]V) map[K][]V {
	out := make(map[K][]V, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		members:    cloneMap(s.members),
		txs:        cloneSlices(s.txs),
		txIndex:    cloneMap(s.txIndex),
		quota:      cloneMap(s.quota),
		badges:     cloneSlices(s.badges),
		badgeIndex: cloneMap(s.badgeIndex),
		draws:      cloneSlices(s.draws),
		rewards:    cloneMap(s.rewards),
	}
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithMemberTx runs fn with exclusive access to the whole store.
func (m *Memory) WithMemberTx(ctx context.Context, _ []bank.MemberID, fn func(bank.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.s.clone()
	if err := fn(m.s); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

// =============================================================================
// LOCKED DELEGATES - Memory satisfies bank.Store by locking around state
// =============================================================================

func (m *Memory) AppendTransaction(ctx context.Context, tx bank.Transaction) (bank.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.AppendTransaction(ctx, tx)
}

func (m *Memory) LoadTransactions(ctx context.Context, id bank.MemberID) ([]bank.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.LoadTransactions(ctx, id)
}

func (m *Memory) GetTransaction(ctx context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetTransaction(ctx, id)
}

func (m *Memory) DeleteTransactions(ctx context.Context, ids []bank.TransactionID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteTransactions(ctx, ids)
}

func (m *Memory) SaveMember(ctx context.Context, mem bank.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SaveMember(ctx, mem)
}

func (m *Memory) GetMember(ctx context.Context, id bank.MemberID) (*bank.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetMember(ctx, id)
}

func (m *Memory) ListMembers(ctx context.Context, familyID bank.FamilyID) ([]bank.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListMembers(ctx, familyID)
}

func (m *Memory) QuotaUsed(ctx context.Context, id bank.MemberID, day bank.Day) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.QuotaUsed(ctx, id, day)
}

func (m *Memory) IncrementQuota(ctx context.Context, id bank.MemberID, day bank.Day, cap int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.IncrementQuota(ctx, id, day, cap)
}

func (m *Memory) PruneQuota(ctx context.Context, before bank.Day) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.PruneQuota(ctx, before)
}

func (m *Memory) InsertBadge(ctx context.Context, b bank.Badge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertBadge(ctx, b)
}

func (m *Memory) ListBadges(ctx context.Context, id bank.MemberID) ([]bank.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListBadges(ctx, id)
}

func (m *Memory) GetBadge(ctx context.Context, id bank.BadgeID) (*bank.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetBadge(ctx, id)
}

func (m *Memory) UseTicket(ctx context.Context, id bank.BadgeID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UseTicket(ctx, id, at)
}

func (m *Memory) RecordDraw(ctx context.Context, d bank.Draw) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.RecordDraw(ctx, d)
}

func (m *Memory) ListDraws(ctx context.Context, id bank.MemberID) ([]bank.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListDraws(ctx, id)
}

func (m *Memory) SaveReward(ctx context.Context, r bank.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SaveReward(ctx, r)
}

func (m *Memory) GetReward(ctx context.Context, id bank.RewardID) (*bank.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetReward(ctx, id)
}

func (m *Memory) ListRewards(ctx context.Context, familyID bank.FamilyID, statuses ...bank.RewardStatus) ([]bank.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListRewards(ctx, familyID, statuses...)
}

func (m *Memory) TransitionReward(ctx context.Context, id bank.RewardID, from, to bank.RewardStatus, actor bank.MemberID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.TransitionReward(ctx, id, from, to, actor, at)
}

func (m *Memory) DeleteFamilyData(ctx context.Context, familyID bank.FamilyID) (bank.PurgeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteFamilyData(ctx, familyID)
}

// =============================================================================
// STATE - Unlocked operations
// =============================================================================

func (s *state) AppendTransaction(_ context.Context, tx bank.Transaction) (bank.Transaction, error) {
	if _, exists := s.txIndex[tx.ID]; exists {
		return bank.Transaction{}, bank.ErrDuplicateTransaction
	}
	txs := s.txs[tx.MemberID]
	tx.Seq = 1
	if n := len(txs); n > 0 {
		tx.Seq = txs[n-1].Seq + 1
	}
	tx.Metadata = cloneMap(tx.Metadata)
	s.txs[tx.MemberID] = append(txs, tx)
	s.txIndex[tx.ID] = tx.MemberID
	return tx, nil
}

func (s *state) LoadTransactions(_ context.Context, id bank.MemberID) ([]bank.Transaction, error) {
	return slices.Clone(s.txs[id]), nil
}

func (s *state) GetTransaction(_ context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	member, ok := s.txIndex[id]
	if !ok {
		return nil, bank.ErrTransactionNotFound
	}
	for _, tx := range s.txs[member] {
		if tx.ID == id {
			return &tx, nil
		}
	}
	return nil, bank.ErrTransactionNotFound
}

func (s *state) DeleteTransactions(_ context.Context, ids []bank.TransactionID) (int64, error) {
	var n int64
	for _, id := range ids {
		member, ok := s.txIndex[id]
		if !ok {
			continue
		}
		s.txs[member] = slices.DeleteFunc(s.txs[member], func(tx bank.Transaction) bool {
			return tx.ID == id
		})
		delete(s.txIndex, id)
		n++
	}
	return n, nil
}

func (s *state) SaveMember(_ context.Context, m bank.Member) error {
	s.members[m.ID] = m
	return nil
}

func (s *state) GetMember(_ context.Context, id bank.MemberID) (*bank.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, bank.ErrMemberNotFound
	}
	return &m, nil
}

func (s *state) ListMembers(_ context.Context, familyID bank.FamilyID) ([]bank.Member, error) {
	var out []bank.Member
	for _, m := range s.members {
		if m.FamilyID == familyID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) QuotaUsed(_ context.Context, id bank.MemberID, day bank.Day) (int, error) {
	return s.quota[quotaKey{id, day}], nil
}

func (s *state) IncrementQuota(_ context.Context, id bank.MemberID, day bank.Day, cap int) (int, error) {
	k := quotaKey{id, day}
	if s.quota[k] >= cap {
		return s.quota[k], &bank.QuotaExhaustedError{MemberID: id, Day: day, Cap: cap}
	}
	s.quota[k]++
	return s.quota[k], nil
}

func (s *state) PruneQuota(_ context.Context, before bank.Day) (int64, error) {
	var n int64
	for k := range s.quota {
		if k.day.Before(before) {
			delete(s.quota, k)
			n++
		}
	}
	return n, nil
}

func (s *state) InsertBadge(_ context.Context, b bank.Badge) (bool, error) {
	for _, existing := range s.badges[b.MemberID] {
		if existing.ConditionKey == b.ConditionKey {
			return false, nil
		}
	}
	s.badges[b.MemberID] = append(s.badges[b.MemberID], b)
	s.badgeIndex[b.ID] = b.MemberID
	return true, nil
}

func (s *state) ListBadges(_ context.Context, id bank.MemberID) ([]bank.Badge, error) {
	return slices.Clone(s.badges[id]), nil
}

func (s *state) GetBadge(_ context.Context, id bank.BadgeID) (*bank.Badge, error) {
	i, member, ok := s.findBadge(id)
	if !ok {
		return nil, bank.ErrBadgeNotFound
	}
	b := s.badges[member][i]
	return &b, nil
}

func (s *state) UseTicket(_ context.Context, id bank.BadgeID, at time.Time) error {
	i, member, ok := s.findBadge(id)
	if !ok {
		return bank.ErrBadgeNotFound
	}
	b := &s.badges[member][i]
	if b.TicketUsed {
		return bank.ErrTicketAlreadyUsed
	}
	b.TicketUsed = true
	b.TicketUsedAt = &at
	return nil
}

func (s *state) findBadge(id bank.BadgeID) (int, bank.MemberID, bool) {
	member, ok := s.badgeIndex[id]
	if !ok {
		return 0, "", false
	}
	for i, b := range s.badges[member] {
		if b.ID == id {
			return i, member, true
		}
	}
	return 0, "", false
}

func (s *state) RecordDraw(_ context.Context, d bank.Draw) error {
	if d.BadgeID != "" {
		for _, existing := range s.draws[d.MemberID] {
			if existing.BadgeID == d.BadgeID {
				return bank.ErrTicketAlreadyUsed
			}
		}
	}
	s.draws[d.MemberID] = append(s.draws[d.MemberID], d)
	return nil
}

func (s *state) ListDraws(_ context.Context, id bank.MemberID) ([]bank.Draw, error) {
	return slices.Clone(s.draws[id]), nil
}

func (s *state) SaveReward(_ context.Context, r bank.Reward) error {
	s.rewards[r.ID] = r
	return nil
}

func (s *state) GetReward(_ context.Context, id bank.RewardID) (*bank.Reward, error) {
	r, ok := s.rewards[id]
	if !ok {
		return nil, bank.ErrRewardNotFound
	}
	return &r, nil
}

func (s *state) ListRewards(_ context.Context, familyID bank.FamilyID, statuses ...bank.RewardStatus) ([]bank.Reward, error) {
	var out []bank.Reward
	for _, r := range s.rewards {
		if r.FamilyID != familyID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, r.Status) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) TransitionReward(_ context.Context, id bank.RewardID, from, to bank.RewardStatus, actor bank.MemberID, at time.Time) error {
	r, ok := s.rewards[id]
	if !ok {
		return bank.ErrRewardNotFound
	}
	if r.Status != from {
		return bank.ErrInvalidTransition
	}
	r.Status = to
	r.DecidedBy = actor
	r.DecidedAt = &at
	s.rewards[id] = r
	return nil
}

func (s *state) DeleteFamilyData(_ context.Context, familyID bank.FamilyID) (bank.PurgeResult, error) {
	var res bank.PurgeResult
	for id, m := range s.members {
		if m.FamilyID != familyID {
			continue
		}
		for _, tx := range s.txs[id] {
			delete(s.txIndex, tx.ID)
		}
		res.Transactions += int64(len(s.txs[id]))
		delete(s.txs, id)

		for _, b := range s.badges[id] {
			delete(s.badgeIndex, b.ID)
		}
		res.Badges += int64(len(s.badges[id]))
		delete(s.badges, id)

		res.Draws += int64(len(s.draws[id]))
		delete(s.draws, id)

		for k := range s.quota {
			if k.member == id {
				delete(s.quota, k)
				res.Quota++
			}
		}
		delete(s.members, id)
		res.Members++
	}
	for id, r := range s.rewards {
		if r.FamilyID == familyID {
			delete(s.rewards, id)
			res.Rewards++
		}
	}
	return res, nil
}

var _ bank.TxStore = (*Memory)(nil)
