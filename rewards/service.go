package rewards

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/warp/points-engine/bank"
)

// Service runs the reward catalog and wishlist workflow.
type Service struct {
	store    bank.TxStore
	calendar bank.Calendar
	logger   *slog.Logger
}

func NewService(store bank.TxStore, calendar bank.Calendar, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, calendar: calendar, logger: logger.With("component", "rewards")}
}

// Create publishes an active reward. The actor must be an admin.
func (s *Service) Create(ctx context.Context, actorID bank.MemberID, in NewReward) (bank.Reward, error) {
	actor, err := s.admin(ctx, actorID)
	if err != nil {
		return bank.Reward{}, err
	}
	return s.save(ctx, actor, in, bank.RewardActive)
}

// Propose adds a pending wishlist entry on behalf of any member.
func (s *Service) Propose(ctx context.Context, memberID bank.MemberID, in NewReward) (bank.Reward, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return bank.Reward{}, err
	}
	return s.save(ctx, member, in, bank.RewardPending)
}

func (s *Service) save(ctx context.Context, by *bank.Member, in NewReward, status bank.RewardStatus) (bank.Reward, error) {
	if err := in.validate(); err != nil {
		return bank.Reward{}, err
	}
	if in.Category == "" {
		in.Category = CategoryOther
	}
	r := bank.Reward{
		ID:          bank.RewardID(uuid.NewString()),
		FamilyID:    by.FamilyID,
		Title:       in.Title,
		Description: in.Description,
		Category:    string(in.Category),
		Cost:        in.Cost,
		Status:      status,
		ProposedBy:  by.ID,
		CreatedAt:   s.calendar.Now(),
	}
	if err := s.store.SaveReward(ctx, r); err != nil {
		return bank.Reward{}, fmt.Errorf("save reward: %w", err)
	}
	s.logger.Info("reward saved", "reward", r.ID, "status", r.Status, "by", by.ID)
	return r, nil
}

// Approve moves a pending proposal to active.
func (s *Service) Approve(ctx context.Context, actorID bank.MemberID, id bank.RewardID) (bank.Reward, error) {
	return s.decide(ctx, actorID, id, bank.RewardActive)
}

// Reject moves a pending proposal to rejected. Rejected is terminal.
func (s *Service) Reject(ctx context.Context, actorID bank.MemberID, id bank.RewardID) (bank.Reward, error) {
	return s.decide(ctx, actorID, id, bank.RewardRejected)
}

func (s *Service) decide(ctx context.Context, actorID bank.MemberID, id bank.RewardID, to bank.RewardStatus) (bank.Reward, error) {
	actor, err := s.admin(ctx, actorID)
	if err != nil {
		return bank.Reward{}, err
	}
	r, err := s.store.GetReward(ctx, id)
	if err != nil {
		return bank.Reward{}, err
	}
	if r.FamilyID != actor.FamilyID {
		return bank.Reward{}, bank.ErrRewardNotFound
	}
	if !CanTransition(r.Status, to) {
		return bank.Reward{}, fmt.Errorf("reward %s is %s: %w", id, r.Status, bank.ErrInvalidTransition)
	}
	if err := s.store.TransitionReward(ctx, id, r.Status, to, actor.ID, s.calendar.Now()); err != nil {
		return bank.Reward{}, err
	}
	s.logger.Info("reward decided", "reward", id, "status", to, "by", actor.ID)

	updated, err := s.store.GetReward(ctx, id)
	if err != nil {
		return bank.Reward{}, err
	}
	return *updated, nil
}

// ListRedeemable returns a family's active rewards.
func (s *Service) ListRedeemable(ctx context.Context, familyID bank.FamilyID) ([]bank.Reward, error) {
	return s.store.ListRewards(ctx, familyID, bank.RewardActive)
}

// ListPending returns a family's proposals awaiting a decision.
func (s *Service) ListPending(ctx context.Context, familyID bank.FamilyID) ([]bank.Reward, error) {
	return s.store.ListRewards(ctx, familyID, bank.RewardPending)
}

// List returns every reward of a family.
func (s *Service) List(ctx context.Context, familyID bank.FamilyID) ([]bank.Reward, error) {
	return s.store.ListRewards(ctx, familyID)
}

// Redeem spends the reward's cost from the member's balance.
func (s *Service) Redeem(ctx context.Context, memberID bank.MemberID, id bank.RewardID) (bank.Transaction, error) {
	var out bank.Transaction
	err := s.store.WithMemberTx(ctx, []bank.MemberID{memberID}, func(st bank.Store) error {
		member, err := st.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		r, err := st.GetReward(ctx, id)
		if err != nil {
			return err
		}
		if r.FamilyID != member.FamilyID {
			return bank.ErrRewardNotFound
		}
		if r.Status != bank.RewardActive {
			return bank.Invalidf("reward %s is %s, not redeemable", id, r.Status)
		}
		out, err = bank.NewLedger(st, s.calendar.Clock).AppendChecked(ctx, bank.Transaction{
			MemberID:    member.ID,
			FamilyID:    member.FamilyID,
			Title:       "Redeemed: " + r.Title,
			Points:      -r.Cost,
			Kind:        bank.KindRedeem,
			ReferenceID: string(r.ID),
		})
		return err
	})
	if err != nil {
		return bank.Transaction{}, err
	}
	s.logger.Info("reward redeemed", "member", memberID, "reward", id, "cost", -out.Points)
	return out, nil
}

func (s *Service) admin(ctx context.Context, id bank.MemberID) (*bank.Member, error) {
	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, fmt.Errorf("member %s: %w", id, bank.ErrForbidden)
	}
	return m, nil
}
