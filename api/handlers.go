/*
handlers.go - HTTP API handlers for the points bank

PURPOSE:
  Exposes the economy service via RPC and REST. Handles HTTP
  request/response, JSON serialization, and delegates to economy.Service.

ENDPOINTS:
  RPC (POST /api/rpc/{name}, JSON body of RPCRequest):
    get_lottery_stats             {member_id}
    get_pending_badge_lotteries   {member_id}
    grant_eligible_badges         {member_id, family_id}
    get_all_badges_progress       {member_id}
    lottery_from_badge            {member_id, badge_id, family_id}
    lottery_from_exchange         {member_id, family_id}
    delete_family_data            {family_id, actor_id}

  Families:
    GET    /api/families/{fid}/members     List members
    POST   /api/families/{fid}/members     Create or update a member
    GET    /api/families/{fid}/rewards     List rewards (?status=)
    POST   /api/families/{fid}/rewards     Admin creates an active reward
    POST   /api/families/{fid}/wishlist    Member proposes a reward

  Members:
    GET    /api/members/{id}/balance       Ledger summary
    GET    /api/members/{id}/level         Level from lifetime points
    GET    /api/members/{id}/transactions  Ledger rows in order
    GET    /api/members/{id}/badges        Awarded badges
    POST   /api/members/{id}/earn          Manual award
    POST   /api/members/{id}/penalty       Deduction
    POST   /api/members/{id}/transfer      Move points to a family member
    POST   /api/members/{id}/complete-task Credit a catalog task
    POST   /api/members/{id}/redeem        Spend points on a reward

  Rewards:
    POST   /api/rewards/{id}/approve       Admin approves a proposal
    POST   /api/rewards/{id}/reject        Admin rejects a proposal

  Admin:
    POST   /api/admin/transactions/delete  Batch delete ledger rows

  Catalog:
    GET    /api/catalog                    Badges, tasks, levels, lottery
    GET    /api/tasks                      Task list

ERROR HANDLING:
  Errors are returned as JSON {error, code, details} with status:
  - 400: Validation errors, invalid input
  - 403: Actor is not allowed
  - 404: Resource not found (including cross-family ids)
  - 409: Insufficient funds, quota exhausted, ticket already used
  - 503: Concurrency conflict after retries; safe to retry
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The acting member is named in the request body.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/economy"
	"github.com/warp/points-engine/lottery"
	"github.com/warp/points-engine/observability"
	"github.com/warp/points-engine/rewards"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *economy.Service
	Store    bank.TxStore
	Calendar bank.Calendar

	logger *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over svc. store and calendar are the ones
// svc was built with; scenarios write through them directly.
func NewHandler(svc *economy.Service, store bank.TxStore, calendar bank.Calendar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:  svc,
		Store:    store,
		Calendar: calendar,
		logger:   logger.With("component", "api"),
	}
}

// =============================================================================
// RPC
// =============================================================================

// rpcFunc serves one named RPC and returns its JSON result.
type rpcFunc func(h *Handler, r *http.Request, req RPCRequest) (any, error)

var rpcs = map[string]rpcFunc{
	"get_lottery_stats": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		return h.Service.GetLotteryStats(r.Context(), bank.MemberID(req.MemberID))
	},
	"get_pending_badge_lotteries": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		tickets, err := h.Service.PendingBadgeLotteries(r.Context(), bank.MemberID(req.MemberID))
		if tickets == nil {
			tickets = []lottery.Ticket{}
		}
		return tickets, err
	},
	"grant_eligible_badges": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		res, err := h.Service.GrantEligibleBadges(r.Context(), bank.MemberID(req.MemberID), bank.FamilyID(req.FamilyID))
		if err != nil {
			return nil, err
		}
		return GrantResponse{Count: res.Count, Badges: toBadgeDTOs(res.Badges)}, nil
	},
	"get_all_badges_progress": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		return h.Service.AllBadgesProgress(r.Context(), bank.MemberID(req.MemberID))
	},
	"lottery_from_badge": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		res, err := h.Service.LotteryFromBadge(r.Context(), bank.MemberID(req.MemberID), bank.BadgeID(req.BadgeID), bank.FamilyID(req.FamilyID))
		if err != nil {
			return nil, err
		}
		return toLotteryResultDTO(res.Draw, res.Balance), nil
	},
	"lottery_from_exchange": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		res, err := h.Service.LotteryFromExchange(r.Context(), bank.MemberID(req.MemberID), bank.FamilyID(req.FamilyID))
		if err != nil {
			return nil, err
		}
		return toLotteryResultDTO(res.Draw, res.Balance), nil
	},
	"delete_family_data": func(h *Handler, r *http.Request, req RPCRequest) (any, error) {
		return h.Service.DeleteFamilyData(r.Context(), bank.MemberID(req.ActorID), bank.FamilyID(req.FamilyID))
	},
}

// RPC dispatches POST /api/rpc/{name}.
func (h *Handler) RPC(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, ok := rpcs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_rpc", "Unknown RPC "+name, nil)
		return
	}

	var req RPCRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MemberID == "" && name != "delete_family_data" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "member_id is required", nil)
		return
	}

	result, err := fn(h, r, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// FAMILY HANDLERS
// =============================================================================

// ListMembers returns a family's members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Service.Members(r.Context(), familyParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveMember creates or updates a member of the family.
func (h *Handler) SaveMember(w http.ResponseWriter, r *http.Request) {
	var req SaveMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.Service.SaveMember(r.Context(), bank.Member{
		ID:       bank.MemberID(req.ID),
		FamilyID: familyParam(r),
		Name:     req.Name,
		Role:     bank.Role(req.Role),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// ListRewards returns a family's rewards, optionally filtered by status.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fid := familyParam(r)

	var (
		list []bank.Reward
		err  error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "":
		list, err = h.Service.Rewards().List(ctx, fid)
	case string(bank.RewardActive):
		list, err = h.Service.Rewards().ListRedeemable(ctx, fid)
	case string(bank.RewardPending):
		list, err = h.Service.Rewards().ListPending(ctx, fid)
	default:
		writeError(w, http.StatusBadRequest, "invalid_argument", "Unknown status "+status, nil)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTOs(list))
}

// CreateReward publishes an active reward. The actor must be an admin of
// the path family.
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	h.saveReward(w, r, h.Service.Rewards().Create)
}

// ProposeReward adds a wishlist entry for the actor.
func (h *Handler) ProposeReward(w http.ResponseWriter, r *http.Request) {
	h.saveReward(w, r, h.Service.Rewards().Propose)
}

func (h *Handler) saveReward(w http.ResponseWriter, r *http.Request, save func(ctx context.Context, id bank.MemberID, in rewards.NewReward) (bank.Reward, error)) {
	var req RewardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor := bank.MemberID(req.ActorID)
	if _, err := h.Service.Member(r.Context(), actor, familyParam(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	reward, err := save(r.Context(), actor, rewards.NewReward{
		Title:       req.Title,
		Description: req.Description,
		Category:    rewards.Category(req.Category),
		Cost:        req.Cost,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardDTO(reward))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// GetBalance returns the member's ledger summary.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.Balance(r.Context(), memberParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		MemberID:    string(sum.MemberID),
		Balance:     sum.Balance,
		TotalEarned: sum.TotalEarned,
		TotalSpent:  sum.TotalSpent,
		Count:       sum.Count,
	})
}

// GetLevel returns the member's level.
func (h *Handler) GetLevel(w http.ResponseWriter, r *http.Request) {
	info, err := h.Service.Level(r.Context(), memberParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetTransactions returns the member's ledger.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Service.Transactions(r.Context(), memberParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetBadges returns the member's awarded badges.
func (h *Handler) GetBadges(w http.ResponseWriter, r *http.Request) {
	held, err := h.Service.Badges(r.Context(), memberParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBadgeDTOs(held))
}

// Earn credits a manual award.
func (h *Handler) Earn(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.Service.Earn(r.Context(), memberParam(r), req.Title, req.Points, req.Category)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// Penalize deducts points.
func (h *Handler) Penalize(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.Service.Penalize(r.Context(), memberParam(r), req.Title, req.Points)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// Transfer moves points from the path member to another family member.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Service.Transfer(r.Context(), memberParam(r), bank.MemberID(req.To), req.Points, req.Title)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TransferResponse{
		Debit:  toTransactionDTO(res.Debit),
		Credit: toTransactionDTO(res.Credit),
	})
}

// CompleteTask credits a catalog task.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req CompleteTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Service.CompleteTask(r.Context(), memberParam(r), req.TaskKey)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	eligible := res.EligibleBadges
	if eligible == nil {
		eligible = []string{}
	}
	writeJSON(w, http.StatusCreated, CompleteTaskResponse{
		Transaction:    toTransactionDTO(res.Transaction),
		Balance:        res.Balance,
		EligibleBadges: eligible,
	})
}

// Redeem spends points on an active reward.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.Service.RedeemReward(r.Context(), memberParam(r), bank.RewardID(req.RewardID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// REWARD DECISIONS
// =============================================================================

// ApproveReward moves a proposal to active.
func (h *Handler) ApproveReward(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.Rewards().Approve)
}

// RejectReward moves a proposal to rejected.
func (h *Handler) RejectReward(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.Rewards().Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor bank.MemberID, id bank.RewardID) (bank.Reward, error)) {
	var req ActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reward, err := fn(r.Context(), bank.MemberID(req.ActorID), bank.RewardID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(reward))
}

// =============================================================================
// ADMIN AND CATALOG
// =============================================================================

// DeleteTransactions removes ledger rows. Admin only.
func (h *Handler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req DeleteTransactionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ids := make([]bank.TransactionID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = bank.TransactionID(id)
	}
	n, err := h.Service.DeleteTransactions(r.Context(), bank.MemberID(req.ActorID), ids)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// GetCatalog returns the active catalog.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Catalog().Spec())
}

// ListTasks returns the task list.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Catalog().Tasks.List())
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func familyParam(r *http.Request) bank.FamilyID {
	return bank.FamilyID(chi.URLParam(r, "familyID"))
}

func memberParam(r *http.Request) bank.MemberID {
	return bank.MemberID(chi.URLParam(r, "memberID"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bank.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, bank.ErrQuotaExhausted),
		errors.Is(err, bank.ErrTicketAlreadyUsed),
		errors.Is(err, bank.ErrTicketNotFound),
		errors.Is(err, bank.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, bank.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, bank.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := observability.Reason(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal", "Internal error", nil)
		return
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, http.StatusText(status), err)
}
