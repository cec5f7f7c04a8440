package badges

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/warp/points-engine/bank"
)

// Progress is one row of the all-badges progress view.
type Progress struct {
	ConditionKey string `json:"conditionKey"`
	Title        string `json:"title"`
	Icon         string `json:"icon"`
	Description  string `json:"description"`
	Progress     int64  `json:"progress"`
	Requirement  int64  `json:"requirement"`
	IsEarned     bool   `json:"isEarned"`
}

// Engine evaluates the catalog for members and awards badges.
type Engine struct {
	store    bank.Store
	catalog  *Catalog
	calendar bank.Calendar
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(store bank.Store, catalog *Catalog, calendar bank.Calendar, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		catalog:  catalog,
		calendar: calendar,
		logger:   logger.With("component", "badges"),
	}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// snapshot reads the ledger and awarded badges once.
func (e *Engine) snapshot(ctx context.Context, memberID bank.MemberID) ([]bank.Transaction, map[string]bool, error) {
	txs, err := e.store.LoadTransactions(ctx, memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	held, err := e.store.ListBadges(ctx, memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("load badges: %w", err)
	}
	earned := make(map[string]bool, len(held))
	for _, b := range held {
		earned[b.ConditionKey] = true
	}
	return txs, earned, nil
}

// Progress returns the current value and requirement for one badge.
func (e *Engine) Progress(ctx context.Context, memberID bank.MemberID, key string) (Progress, error) {
	def, ok := e.catalog.Lookup(key)
	if !ok {
		return Progress{}, fmt.Errorf("badge %q: %w", key, bank.ErrBadgeNotFound)
	}
	txs, earned, err := e.snapshot(ctx, memberID)
	if err != nil {
		return Progress{}, err
	}
	return e.progressOf(def, txs, earned), nil
}

// AllProgress returns progress for every catalog badge in catalog order.
// Earned status comes from the same read as the progress values.
func (e *Engine) AllProgress(ctx context.Context, memberID bank.MemberID) ([]Progress, error) {
	txs, earned, err := e.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}
	out := make([]Progress, 0, len(e.catalog.defs))
	for _, def := range e.catalog.defs {
		out = append(out, e.progressOf(def, txs, earned))
	}
	return out, nil
}

func (e *Engine) progressOf(def Definition, txs []bank.Transaction, earned map[string]bool) Progress {
	return Progress{
		ConditionKey: def.Key,
		Title:        def.Title,
		Icon:         def.Icon,
		Description:  def.Description,
		Progress:     min(Measure(def, txs, e.calendar), def.Requirement),
		Requirement:  def.Requirement,
		IsEarned:     earned[def.Key],
	}
}

// Eligible returns the keys whose requirement is met but which the member
// does not hold yet.
func (e *Engine) Eligible(ctx context.Context, memberID bank.MemberID) ([]string, error) {
	txs, earned, err := e.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return e.eligible(txs, earned), nil
}

func (e *Engine) eligible(txs []bank.Transaction, earned map[string]bool) []string {
	var keys []string
	for _, def := range e.catalog.defs {
		if earned[def.Key] {
			continue
		}
		if Measure(def, txs, e.calendar) >= def.Requirement {
			keys = append(keys, def.Key)
		}
	}
	return keys
}

// GrantEligible awards every eligible badge the member does not hold and
// returns the newly created badges. Concurrent calls never duplicate a
// badge; a lost race is silently skipped. Points are never changed.
func (e *Engine) GrantEligible(ctx context.Context, memberID bank.MemberID) ([]bank.Badge, error) {
	member, err := e.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	txs, earned, err := e.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var granted []bank.Badge
	for _, key := range e.eligible(txs, earned) {
		def, _ := e.catalog.Lookup(key)
		badge := bank.Badge{
			ID:           bank.BadgeID(uuid.NewString()),
			MemberID:     member.ID,
			FamilyID:     member.FamilyID,
			ConditionKey: def.Key,
			Title:        def.Title,
			Icon:         def.Icon,
			AwardedAt:    e.calendar.Now(),
		}
		inserted, err := e.store.InsertBadge(ctx, badge)
		if err != nil {
			return granted, fmt.Errorf("grant badge %q: %w", key, err)
		}
		if !inserted {
			continue
		}
		e.logger.Info("badge granted", "member", member.ID, "badge", key)
		granted = append(granted, badge)
	}
	return granted, nil
}
