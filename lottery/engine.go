package lottery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/quota"
)

// DefaultExchangePrice is the cost in points of one exchange ticket.
const DefaultExchangePrice = 10

// ErrDrawState is returned when a draw is moved out of lifecycle order.
var ErrDrawState = fmt.Errorf("%w: draw not in expected state", bank.ErrInvalidArgument)

// =============================================================================
// DRAW LIFECYCLE
// =============================================================================

// pending wraps a bank.Draw while it moves through its lifecycle.
type pending struct {
	bank.Draw
}

func newDraw(member *bank.Member, source bank.DrawSource) *pending {
	return &pending{bank.Draw{
		ID:       bank.DrawID(uuid.NewString()),
		MemberID: member.ID,
		FamilyID: member.FamilyID,
		Source:   source,
		State:    bank.DrawIdle,
	}}
}

func (p *pending) commit() error {
	if p.State != bank.DrawIdle {
		return ErrDrawState
	}
	p.State = bank.DrawCommitted
	return nil
}

func (p *pending) resolve(tier int, points int64) error {
	if p.State != bank.DrawCommitted {
		return ErrDrawState
	}
	p.Tier = tier
	p.PointsWon = points
	p.State = bank.DrawResolved
	return nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Ticket is an unused badge ticket.
type Ticket struct {
	TicketID   bank.BadgeID `json:"ticketId"`
	BadgeTitle string       `json:"badgeTitle"`
	BadgeIcon  string       `json:"badgeIcon"`
}

// Stats summarizes a member's lottery activity.
type Stats struct {
	TotalLotteryCount      int   `json:"totalLotteryCount"`
	TotalPointsWon         int64 `json:"totalPointsWon"`
	BadgeLotteryCount      int   `json:"badgeLotteryCount"`
	ExchangeLotteryCount   int   `json:"exchangeLotteryCount"`
	TodayExchangeCount     int   `json:"todayExchangeCount"`
	RemainingExchangeCount int   `json:"remainingExchangeCount"`
	PendingBadgeCount      int   `json:"pendingBadgeCount"`
}

// Engine consumes tickets and resolves draws.
type Engine struct {
	store    bank.TxStore
	table    *Table
	source   Source
	quota    *quota.Tracker
	calendar bank.Calendar
	price    int64
	logger   *slog.Logger
}

// Config holds engine settings. Zero values select defaults.
type Config struct {
	Table  *Table
	Source Source
	Price  int64
	Logger *slog.Logger
}

// NewEngine creates a lottery engine.
func NewEngine(store bank.TxStore, tracker *quota.Tracker, calendar bank.Calendar, cfg Config) *Engine {
	if cfg.Table == nil {
		cfg.Table = DefaultTable()
	}
	if cfg.Source == nil {
		cfg.Source = DefaultSource()
	}
	if cfg.Price <= 0 {
		cfg.Price = DefaultExchangePrice
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:    store,
		table:    cfg.Table,
		source:   cfg.Source,
		quota:    tracker,
		calendar: calendar,
		price:    cfg.Price,
		logger:   cfg.Logger.With("component", "lottery"),
	}
}

// Price returns the exchange ticket price.
func (e *Engine) Price() int64 { return e.price }

// Table returns the payout table.
func (e *Engine) Table() *Table { return e.table }

// DrawFromBadge consumes the ticket of one of the member's badges and
// resolves a draw. The ticket flag, the ledger credit and the draw record
// are written atomically.
func (e *Engine) DrawFromBadge(ctx context.Context, memberID bank.MemberID, badgeID bank.BadgeID) (bank.Draw, error) {
	var out bank.Draw
	err := e.store.WithMemberTx(ctx, []bank.MemberID{memberID}, func(s bank.Store) error {
		member, err := s.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		badge, err := s.GetBadge(ctx, badgeID)
		if errors.Is(err, bank.ErrBadgeNotFound) {
			return fmt.Errorf("badge %s: %w", badgeID, bank.ErrTicketNotFound)
		}
		if err != nil {
			return err
		}
		if badge.MemberID != memberID {
			return fmt.Errorf("badge %s: %w", badgeID, bank.ErrTicketNotFound)
		}
		if badge.TicketUsed {
			return bank.ErrTicketAlreadyUsed
		}

		d := newDraw(member, bank.SourceBadge)
		d.BadgeID = badge.ID
		if err := s.UseTicket(ctx, badge.ID, e.calendar.Now()); err != nil {
			return err
		}
		if err := d.commit(); err != nil {
			return err
		}
		if err := e.settle(ctx, s, d, "Lottery win: "+badge.Title); err != nil {
			return err
		}
		out = d.Draw
		return nil
	})
	if err != nil {
		return bank.Draw{}, err
	}
	e.logger.Info("badge draw resolved", "member", memberID, "badge", badgeID, "tier", out.Tier, "points", out.PointsWon)
	return out, nil
}

// DrawFromExchange buys a ticket for the exchange price and resolves a draw.
// Quota and funds are both checked before anything is written; the quota
// unit, the debit, the credit and the draw record commit together.
func (e *Engine) DrawFromExchange(ctx context.Context, memberID bank.MemberID) (bank.Draw, error) {
	var out bank.Draw
	err := e.store.WithMemberTx(ctx, []bank.MemberID{memberID}, func(s bank.Store) error {
		member, err := s.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		tracker := e.quota.WithStore(s)

		used, err := tracker.UsedToday(ctx, memberID)
		if err != nil {
			return err
		}
		if used >= tracker.Cap() {
			return &bank.QuotaExhaustedError{MemberID: memberID, Day: tracker.Today(), Cap: tracker.Cap()}
		}

		txs, err := s.LoadTransactions(ctx, memberID)
		if err != nil {
			return err
		}
		if balance := bank.FoldBalance(txs); balance < e.price {
			return &bank.InsufficientFundsError{MemberID: memberID, Balance: balance, Required: e.price}
		}

		if err := tracker.ConsumeOne(ctx, memberID); err != nil {
			return err
		}

		d := newDraw(member, bank.SourceExchange)
		cost, err := bank.NewLedger(s, e.calendar.Clock).Append(ctx, bank.Transaction{
			MemberID:    member.ID,
			FamilyID:    member.FamilyID,
			Title:       "Lottery ticket",
			Points:      -e.price,
			Kind:        bank.KindExchange,
			ReferenceID: string(d.ID),
		})
		if err != nil {
			return err
		}
		d.CostTransactionID = cost.ID
		if err := d.commit(); err != nil {
			return err
		}
		if err := e.settle(ctx, s, d, "Lottery win"); err != nil {
			return err
		}
		out = d.Draw
		return nil
	})
	if err != nil {
		return bank.Draw{}, err
	}
	e.logger.Info("exchange draw resolved", "member", memberID, "tier", out.Tier, "points", out.PointsWon)
	return out, nil
}

// settle resolves a committed draw, credits a non-zero win and records it.
func (e *Engine) settle(ctx context.Context, s bank.Store, d *pending, title string) error {
	tier, points := e.table.Resolve(e.source)
	if err := d.resolve(tier, points); err != nil {
		return err
	}
	d.CreatedAt = e.calendar.Now()

	if points > 0 {
		credit, err := bank.NewLedger(s, e.calendar.Clock).Append(ctx, bank.Transaction{
			MemberID:    d.MemberID,
			FamilyID:    d.FamilyID,
			Title:       title,
			Points:      points,
			Kind:        bank.KindLottery,
			ReferenceID: string(d.ID),
			Metadata:    map[string]string{"source": string(d.Source), "tier": fmt.Sprint(tier)},
		})
		if err != nil {
			return err
		}
		d.TransactionID = credit.ID
	}
	return s.RecordDraw(ctx, d.Draw)
}

// PendingTickets lists the member's badges whose ticket is unused.
func (e *Engine) PendingTickets(ctx context.Context, memberID bank.MemberID) ([]Ticket, error) {
	held, err := e.store.ListBadges(ctx, memberID)
	if err != nil {
		return nil, err
	}
	tickets := make([]Ticket, 0, len(held))
	for _, b := range held {
		if !b.TicketUsed {
			tickets = append(tickets, Ticket{TicketID: b.ID, BadgeTitle: b.Title, BadgeIcon: b.Icon})
		}
	}
	return tickets, nil
}

// Stats aggregates the member's draws, today's quota and pending tickets.
func (e *Engine) Stats(ctx context.Context, memberID bank.MemberID) (Stats, error) {
	draws, err := e.store.ListDraws(ctx, memberID)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, d := range draws {
		st.TotalLotteryCount++
		st.TotalPointsWon += d.PointsWon
		switch d.Source {
		case bank.SourceBadge:
			st.BadgeLotteryCount++
		case bank.SourceExchange:
			st.ExchangeLotteryCount++
		}
	}

	if st.TodayExchangeCount, err = e.quota.UsedToday(ctx, memberID); err != nil {
		return Stats{}, err
	}
	st.RemainingExchangeCount = max(0, e.quota.Cap()-st.TodayExchangeCount)

	tickets, err := e.PendingTickets(ctx, memberID)
	if err != nil {
		return Stats{}, err
	}
	st.PendingBadgeCount = len(tickets)
	return st, nil
}
