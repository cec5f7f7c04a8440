/*
Package economy is the entry point for every points-bank operation.

PURPOSE:
  Composes the ledger, badge engine, lottery engine, quota tracker, level
  calculator and reward workflow behind one service. The API layer calls
  only this package; each method is one RPC or REST operation.

SCOPING:
  Operations that take a family id check it against the member's family.
  A mismatch reports the member as not found, so ids from another family
  are indistinguishable from ids that do not exist.

RETRIES:
  Every mutating operation runs inside bank.WithRetry. A write that loses
  a sequence race (ErrConcurrencyConflict) is re-run from scratch against
  fresh state; its earlier attempt was rolled back by the store.

SEE ALSO:
  - bank/store.go: WithMemberTx atomicity
  - lottery/engine.go: draw lifecycle
  - badges/engine.go: progress and grants
*/
package economy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/warp/points-engine/badges"
	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/levels"
	"github.com/warp/points-engine/lottery"
	"github.com/warp/points-engine/observability"
	"github.com/warp/points-engine/quota"
	"github.com/warp/points-engine/rewards"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds service settings. Zero values select defaults.
type Config struct {
	Catalog          *factory.Catalog
	Source           lottery.Source
	ExchangeCost     int64
	DailyExchangeCap int
	RetryAttempts    int
	Logger           *slog.Logger
}

// Service runs the points economy for all families.
type Service struct {
	store    bank.TxStore
	calendar bank.Calendar
	catalog  *factory.Catalog
	balances *bank.BalanceView
	quota    *quota.Tracker
	badges   *badges.Engine
	lottery  *lottery.Engine
	rewards  *rewards.Service
	attempts int
	logger   *slog.Logger
}

// NewService wires the engines over store.
func NewService(store bank.TxStore, calendar bank.Calendar, cfg Config) *Service {
	if cfg.Catalog == nil {
		cfg.Catalog = factory.Default()
	}
	if cfg.DailyExchangeCap <= 0 {
		cfg.DailyExchangeCap = quota.DefaultDailyCap
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = bank.DefaultRetryAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tracker := quota.NewTracker(store, calendar, cfg.DailyExchangeCap)
	return &Service{
		store:    store,
		calendar: calendar,
		catalog:  cfg.Catalog,
		balances: bank.NewBalanceView(store),
		quota:    tracker,
		badges:   badges.NewEngine(store, cfg.Catalog.Badges, calendar, cfg.Logger),
		lottery: lottery.NewEngine(store, tracker, calendar, lottery.Config{
			Table:  cfg.Catalog.Lottery,
			Source: cfg.Source,
			Price:  cfg.ExchangeCost,
			Logger: cfg.Logger,
		}),
		rewards:  rewards.NewService(store, calendar, cfg.Logger),
		attempts: cfg.RetryAttempts,
		logger:   cfg.Logger.With("component", "economy"),
	}
}

// Catalog returns the active catalog.
func (s *Service) Catalog() *factory.Catalog { return s.catalog }

// Rewards returns the reward catalog and wishlist workflow.
func (s *Service) Rewards() *rewards.Service { return s.rewards }

// ExchangeCost returns the price of one exchange ticket.
func (s *Service) ExchangeCost() int64 { return s.lottery.Price() }

// =============================================================================
// RESULT TYPES
// =============================================================================

// GrantResult is returned by GrantEligibleBadges.
type GrantResult struct {
	Count  int
	Badges []bank.Badge
}

// DrawResult is a resolved draw and the member's balance after it.
type DrawResult struct {
	Draw    bank.Draw
	Balance int64
}

// TaskResult is returned by CompleteTask.
type TaskResult struct {
	Transaction    bank.Transaction
	Balance        int64
	EligibleBadges []string
}

// TransferResult holds both sides of a transfer.
type TransferResult struct {
	Debit  bank.Transaction
	Credit bank.Transaction
}

// =============================================================================
// MEMBERS
// =============================================================================

// SaveMember creates or updates a member.
func (s *Service) SaveMember(ctx context.Context, m bank.Member) (bank.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.ID == "" {
		m.ID = bank.MemberID(uuid.NewString())
	}
	if m.FamilyID == "" {
		return bank.Member{}, bank.Invalidf("member requires a family")
	}
	if m.Name == "" {
		return bank.Member{}, bank.Invalidf("member requires a name")
	}
	if m.Role == "" {
		m.Role = bank.RoleChild
	}
	if m.Role != bank.RoleAdmin && m.Role != bank.RoleChild {
		return bank.Member{}, bank.Invalidf("unknown role %q", m.Role)
	}
	if existing, err := s.store.GetMember(ctx, m.ID); err == nil {
		if existing.FamilyID != m.FamilyID {
			return bank.Member{}, bank.Invalidf("member %s belongs to another family", m.ID)
		}
		m.CreatedAt = existing.CreatedAt
	} else if !bank.IsNotFound(err) {
		return bank.Member{}, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.calendar.Now()
	}
	if err := s.store.SaveMember(ctx, m); err != nil {
		return bank.Member{}, fmt.Errorf("save member: %w", err)
	}
	return m, nil
}

// Members lists a family's members.
func (s *Service) Members(ctx context.Context, familyID bank.FamilyID) ([]bank.Member, error) {
	return s.store.ListMembers(ctx, familyID)
}

// Member returns a member, checking the family when familyID is set.
func (s *Service) Member(ctx context.Context, memberID bank.MemberID, familyID bank.FamilyID) (*bank.Member, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if familyID != "" && m.FamilyID != familyID {
		return nil, fmt.Errorf("%s in family %s: %w", memberID, familyID, bank.ErrMemberNotFound)
	}
	return m, nil
}

// =============================================================================
// LOTTERY RPCS
// =============================================================================

// GetLotteryStats implements get_lottery_stats.
func (s *Service) GetLotteryStats(ctx context.Context, memberID bank.MemberID) (lottery.Stats, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return lottery.Stats{}, err
	}
	return s.lottery.Stats(ctx, memberID)
}

// PendingBadgeLotteries implements get_pending_badge_lotteries.
func (s *Service) PendingBadgeLotteries(ctx context.Context, memberID bank.MemberID) ([]lottery.Ticket, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return nil, err
	}
	return s.lottery.PendingTickets(ctx, memberID)
}

// LotteryFromBadge implements lottery_from_badge.
func (s *Service) LotteryFromBadge(ctx context.Context, memberID bank.MemberID, badgeID bank.BadgeID, familyID bank.FamilyID) (DrawResult, error) {
	return s.draw(ctx, "lottery_from_badge", memberID, familyID, func(ctx context.Context) (bank.Draw, error) {
		return s.lottery.DrawFromBadge(ctx, memberID, badgeID)
	})
}

// LotteryFromExchange implements lottery_from_exchange.
func (s *Service) LotteryFromExchange(ctx context.Context, memberID bank.MemberID, familyID bank.FamilyID) (DrawResult, error) {
	return s.draw(ctx, "lottery_from_exchange", memberID, familyID, func(ctx context.Context) (bank.Draw, error) {
		return s.lottery.DrawFromExchange(ctx, memberID)
	})
}

func (s *Service) draw(ctx context.Context, op string, memberID bank.MemberID, familyID bank.FamilyID, fn func(context.Context) (bank.Draw, error)) (DrawResult, error) {
	if _, err := s.Member(ctx, memberID, familyID); err != nil {
		observability.RecordFailure(op, err)
		return DrawResult{}, err
	}

	var d bank.Draw
	err := bank.WithRetry(ctx, s.attempts, func(ctx context.Context) error {
		var err error
		d, err = fn(ctx)
		return err
	})
	if err != nil {
		observability.RecordFailure(op, err)
		return DrawResult{}, err
	}

	observability.LotteryDraws.WithLabelValues(string(d.Source), fmt.Sprint(d.Tier)).Inc()
	if d.PointsWon > 0 {
		observability.LotteryPointsWon.Add(float64(d.PointsWon))
		observability.TransactionsAppended.WithLabelValues(string(bank.KindLottery)).Inc()
	}
	if d.Source == bank.SourceExchange {
		observability.TransactionsAppended.WithLabelValues(string(bank.KindExchange)).Inc()
	}

	balance, err := s.balances.CurrentBalance(ctx, memberID)
	if err != nil {
		return DrawResult{}, err
	}
	return DrawResult{Draw: d, Balance: balance}, nil
}

// =============================================================================
// BADGE RPCS
// =============================================================================

// GrantEligibleBadges implements grant_eligible_badges.
func (s *Service) GrantEligibleBadges(ctx context.Context, memberID bank.MemberID, familyID bank.FamilyID) (GrantResult, error) {
	if _, err := s.Member(ctx, memberID, familyID); err != nil {
		observability.RecordFailure("grant_eligible_badges", err)
		return GrantResult{}, err
	}
	granted, err := s.badges.GrantEligible(ctx, memberID)
	for _, b := range granted {
		observability.BadgesGranted.WithLabelValues(b.ConditionKey).Inc()
	}
	if err != nil {
		observability.RecordFailure("grant_eligible_badges", err)
		return GrantResult{Count: len(granted), Badges: granted}, err
	}
	return GrantResult{Count: len(granted), Badges: granted}, nil
}

// AllBadgesProgress implements get_all_badges_progress.
func (s *Service) AllBadgesProgress(ctx context.Context, memberID bank.MemberID) ([]badges.Progress, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return nil, err
	}
	return s.badges.AllProgress(ctx, memberID)
}

// Badges lists the badges a member holds.
func (s *Service) Badges(ctx context.Context, memberID bank.MemberID) ([]bank.Badge, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return nil, err
	}
	return s.store.ListBadges(ctx, memberID)
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// DeleteFamilyData implements delete_family_data. The actor must be an
// admin of the family being purged.
func (s *Service) DeleteFamilyData(ctx context.Context, actorID bank.MemberID, familyID bank.FamilyID) (bank.PurgeResult, error) {
	if familyID == "" {
		return bank.PurgeResult{}, bank.Invalidf("family id is required")
	}
	actor, err := s.store.GetMember(ctx, actorID)
	if err != nil {
		return bank.PurgeResult{}, err
	}
	if actor.FamilyID != familyID || !actor.IsAdmin() {
		err := fmt.Errorf("%s may not purge family %s: %w", actorID, familyID, bank.ErrForbidden)
		observability.RecordFailure("delete_family_data", err)
		return bank.PurgeResult{}, err
	}

	res, err := s.store.DeleteFamilyData(ctx, familyID)
	if err != nil {
		observability.RecordFailure("delete_family_data", err)
		return bank.PurgeResult{}, fmt.Errorf("purge family %s: %w", familyID, err)
	}
	s.logger.Warn("family data deleted", "family", familyID, "actor", actorID,
		"transactions", res.Transactions, "badges", res.Badges, "members", res.Members)
	return res, nil
}

// DeleteTransactions removes ledger rows by id. The actor must be an admin
// of the family that owns every row. Balances re-fold on the next read.
func (s *Service) DeleteTransactions(ctx context.Context, actorID bank.MemberID, ids []bank.TransactionID) (int64, error) {
	if len(ids) == 0 {
		return 0, bank.Invalidf("no transaction ids given")
	}
	actor, err := s.store.GetMember(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("member %s: %w", actorID, bank.ErrForbidden)
	}

	var members []bank.MemberID
	seen := make(map[bank.MemberID]bool)
	for _, id := range ids {
		tx, err := s.store.GetTransaction(ctx, id)
		if err != nil {
			return 0, err
		}
		if tx.FamilyID != actor.FamilyID {
			return 0, fmt.Errorf("transaction %s: %w", id, bank.ErrTransactionNotFound)
		}
		if !seen[tx.MemberID] {
			seen[tx.MemberID] = true
			members = append(members, tx.MemberID)
		}
	}

	var n int64
	err = s.store.WithMemberTx(ctx, members, func(st bank.Store) error {
		var err error
		n, err = st.DeleteTransactions(ctx, ids)
		return err
	})
	if err != nil {
		observability.RecordFailure("delete_transactions", err)
		return 0, err
	}
	s.logger.Info("transactions deleted", "actor", actorID, "count", n)
	return n, nil
}

// PruneQuota deletes quota counters older than retainDays.
func (s *Service) PruneQuota(ctx context.Context, retainDays int) (int64, error) {
	n, err := s.quota.Prune(ctx, retainDays)
	if err != nil {
		return 0, err
	}
	observability.QuotaPruned.Add(float64(n))
	return n, nil
}

// =============================================================================
// LEDGER OPERATIONS
// =============================================================================

// CompleteTask credits a catalog task and reports which badges became
// eligible. Badges are not granted here.
func (s *Service) CompleteTask(ctx context.Context, memberID bank.MemberID, taskKey string) (TaskResult, error) {
	task, err := s.catalog.Tasks.Lookup(taskKey)
	if err != nil {
		return TaskResult{}, err
	}
	tx, err := s.append(ctx, "complete_task", memberID, false, func(*bank.Member) bank.Transaction {
		return bank.Transaction{
			Title:       task.Title,
			Points:      task.Points,
			Kind:        bank.KindEarn,
			Category:    task.Category,
			ReferenceID: task.Key,
		}
	})
	if err != nil {
		return TaskResult{}, err
	}
	balance, err := s.balances.CurrentBalance(ctx, memberID)
	if err != nil {
		return TaskResult{}, err
	}
	eligible, err := s.badges.Eligible(ctx, memberID)
	if err != nil {
		return TaskResult{}, err
	}
	return TaskResult{Transaction: tx, Balance: balance, EligibleBadges: eligible}, nil
}

// Earn credits a manual award.
func (s *Service) Earn(ctx context.Context, memberID bank.MemberID, title string, points int64, category string) (bank.Transaction, error) {
	if points <= 0 {
		return bank.Transaction{}, bank.Invalidf("earned points must be positive, got %d", points)
	}
	return s.append(ctx, "earn", memberID, false, func(*bank.Member) bank.Transaction {
		return bank.Transaction{Title: title, Points: points, Kind: bank.KindEarn, Category: category}
	})
}

// Penalize deducts points. Penalties may take the balance below zero.
func (s *Service) Penalize(ctx context.Context, memberID bank.MemberID, title string, points int64) (bank.Transaction, error) {
	if points <= 0 {
		return bank.Transaction{}, bank.Invalidf("penalty points must be positive, got %d", points)
	}
	return s.append(ctx, "penalize", memberID, false, func(*bank.Member) bank.Transaction {
		return bank.Transaction{Title: title, Points: -points, Kind: bank.KindPenalty}
	})
}

// append writes one transaction for memberID under retry. checked rejects
// debits that would overdraw.
func (s *Service) append(ctx context.Context, op string, memberID bank.MemberID, checked bool, build func(*bank.Member) bank.Transaction) (bank.Transaction, error) {
	var out bank.Transaction
	err := bank.WithRetry(ctx, s.attempts, func(ctx context.Context) error {
		return s.store.WithMemberTx(ctx, []bank.MemberID{memberID}, func(st bank.Store) error {
			m, err := st.GetMember(ctx, memberID)
			if err != nil {
				return err
			}
			tx := build(m)
			tx.MemberID = m.ID
			tx.FamilyID = m.FamilyID

			ledger := bank.NewLedger(st, s.calendar.Clock)
			if checked {
				out, err = ledger.AppendChecked(ctx, tx)
			} else {
				out, err = ledger.Append(ctx, tx)
			}
			return err
		})
	})
	if err != nil {
		observability.RecordFailure(op, err)
		return bank.Transaction{}, err
	}
	observability.RecordTransaction(out)
	s.logger.Debug("transaction appended", "op", op, "member", memberID, "kind", out.Kind, "points", out.Points, "seq", out.Seq)
	return out, nil
}

// Transfer moves points between two members of the same family. Both
// members are locked; the sender may not overdraw.
func (s *Service) Transfer(ctx context.Context, from, to bank.MemberID, points int64, title string) (TransferResult, error) {
	switch {
	case points <= 0:
		return TransferResult{}, bank.Invalidf("transfer points must be positive, got %d", points)
	case from == to:
		return TransferResult{}, bank.Invalidf("cannot transfer to self")
	}
	if strings.TrimSpace(title) == "" {
		title = "Transfer"
	}

	var out TransferResult
	err := bank.WithRetry(ctx, s.attempts, func(ctx context.Context) error {
		return s.store.WithMemberTx(ctx, []bank.MemberID{from, to}, func(st bank.Store) error {
			sender, err := st.GetMember(ctx, from)
			if err != nil {
				return err
			}
			recipient, err := st.GetMember(ctx, to)
			if err != nil {
				return err
			}
			if sender.FamilyID != recipient.FamilyID {
				return fmt.Errorf("%s in family %s: %w", to, sender.FamilyID, bank.ErrMemberNotFound)
			}

			ref := uuid.NewString()
			ledger := bank.NewLedger(st, s.calendar.Clock)
			out.Debit, err = ledger.AppendChecked(ctx, bank.Transaction{
				MemberID:       sender.ID,
				FamilyID:       sender.FamilyID,
				Title:          title,
				Points:         -points,
				Kind:           bank.KindTransfer,
				ReferenceID:    ref,
				CounterpartyID: recipient.ID,
			})
			if err != nil {
				return err
			}
			out.Credit, err = ledger.Append(ctx, bank.Transaction{
				MemberID:       recipient.ID,
				FamilyID:       recipient.FamilyID,
				Title:          title,
				Points:         points,
				Kind:           bank.KindTransfer,
				ReferenceID:    ref,
				CounterpartyID: sender.ID,
			})
			return err
		})
	})
	if err != nil {
		observability.RecordFailure("transfer", err)
		return TransferResult{}, err
	}
	observability.RecordTransaction(out.Debit)
	observability.RecordTransaction(out.Credit)
	s.logger.Info("points transferred", "from", from, "to", to, "points", points)
	return out, nil
}

// RedeemReward spends points on an active reward.
func (s *Service) RedeemReward(ctx context.Context, memberID bank.MemberID, rewardID bank.RewardID) (bank.Transaction, error) {
	var out bank.Transaction
	err := bank.WithRetry(ctx, s.attempts, func(ctx context.Context) error {
		var err error
		out, err = s.rewards.Redeem(ctx, memberID, rewardID)
		return err
	})
	if err != nil {
		observability.RecordFailure("redeem", err)
		return bank.Transaction{}, err
	}
	observability.RecordTransaction(out)
	return out, nil
}

// =============================================================================
// READS
// =============================================================================

// Balance returns the member's ledger summary.
func (s *Service) Balance(ctx context.Context, memberID bank.MemberID) (bank.Summary, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return bank.Summary{}, err
	}
	return s.balances.Summary(ctx, memberID)
}

// Transactions returns the member's ledger in sequence order.
func (s *Service) Transactions(ctx context.Context, memberID bank.MemberID) ([]bank.Transaction, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return nil, err
	}
	return s.store.LoadTransactions(ctx, memberID)
}

// Level returns the member's level from lifetime earned points.
func (s *Service) Level(ctx context.Context, memberID bank.MemberID) (levels.Info, error) {
	if _, err := s.Member(ctx, memberID, ""); err != nil {
		return levels.Info{}, err
	}
	earned, err := s.balances.TotalEarned(ctx, memberID)
	if err != nil {
		return levels.Info{}, err
	}
	return s.catalog.Levels.Info(earned), nil
}
