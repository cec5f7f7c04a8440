/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a demo
	family for testing and demos. Each scenario creates members, rewards
	and ledger history that demonstrate specific features.

AVAILABLE SCENARIOS:

	starter-family:  Parent and two kids, a reward catalog, one wishlist entry
	streak-week:     A week of daily homework, badges ready to be granted
	lottery-ready:   Badges granted, tickets pending, points for exchanges

HOW SCENARIOS WORK:
 1. Purge the demo family (other families are untouched)
 2. Create members
 3. Write ledger history, backdated where a scenario needs past days
 4. Optionally grant badges or create rewards through the service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "streak-week"}

NOTE:

	Scenarios delete the demo family. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error helpers
  - factory/catalog.go: Task list used by the loaders
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/rewards"
)

// DemoFamily is the family every scenario writes to.
const DemoFamily bank.FamilyID = "demo-family"

const (
	demoParent bank.MemberID = "demo-parent"
	demoAlex   bank.MemberID = "demo-alex"
	demoSam    bank.MemberID = "demo-sam"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter-family",
		Name:        "Starter Family",
		Description: "A parent and two kids with a reward catalog and one wishlist proposal",
	},
	{
		ID:          "streak-week",
		Name:        "Streak Week",
		Description: "Seven days of homework in a row; streak badges are eligible but not granted",
	},
	{
		ID:          "lottery-ready",
		Name:        "Lottery Ready",
		Description: "Badges granted with unused tickets and enough points for exchange draws",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"starter-family": (*Handler).loadStarterFamilyScenario,
	"streak-week":    (*Handler).loadStreakWeekScenario,
	"lottery-ready":  (*Handler).loadLotteryReadyScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the demo family with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_argument", "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if _, err := h.Store.DeleteFamilyData(ctx, DemoFamily); err != nil {
		h.writeServiceError(w, r, fmt.Errorf("purge demo family: %w", err))
		return
	}
	h.currentScenario = ""

	if err := load(h, ctx); err != nil {
		h.writeServiceError(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID, "family_id": string(DemoFamily)})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedMembers(ctx context.Context) error {
	for _, m := range []bank.Member{
		{ID: demoParent, FamilyID: DemoFamily, Name: "Parent", Role: bank.RoleAdmin},
		{ID: demoAlex, FamilyID: DemoFamily, Name: "Alex", Role: bank.RoleChild},
		{ID: demoSam, FamilyID: DemoFamily, Name: "Sam", Role: bank.RoleChild},
	} {
		if _, err := h.Service.SaveMember(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// backfill appends a completed task for member at the given time.
func (h *Handler) backfill(ctx context.Context, member bank.MemberID, taskKey string, at time.Time) error {
	task, err := h.Service.Catalog().Tasks.Lookup(taskKey)
	if err != nil {
		return err
	}
	_, err = bank.NewLedger(h.Store, h.Calendar.Clock).Append(ctx, bank.Transaction{
		MemberID:    member,
		FamilyID:    DemoFamily,
		Title:       task.Title,
		Points:      task.Points,
		Kind:        bank.KindEarn,
		Category:    task.Category,
		ReferenceID: task.Key,
		CreatedAt:   at,
	})
	return err
}

func (h *Handler) loadStarterFamilyScenario(ctx context.Context) error {
	if err := h.seedMembers(ctx); err != nil {
		return err
	}

	catalog := []rewards.NewReward{
		{Title: "Ice cream", Category: rewards.CategoryTreat, Cost: 15},
		{Title: "30 minutes of games", Category: rewards.CategoryScreenTime, Cost: 20},
		{Title: "Trip to the zoo", Category: rewards.CategoryOuting, Cost: 200},
		{Title: "Stay up late", Category: rewards.CategoryPrivilege, Cost: 40},
	}
	for _, in := range catalog {
		if _, err := h.Service.Rewards().Create(ctx, demoParent, in); err != nil {
			return err
		}
	}
	if _, err := h.Service.Rewards().Propose(ctx, demoAlex, rewards.NewReward{
		Title:       "New football",
		Description: "The blue one from the sports shop",
		Category:    rewards.CategoryToy,
		Cost:        120,
	}); err != nil {
		return err
	}

	for _, key := range []string{"make_bed", "dishes", "reading"} {
		if _, err := h.Service.CompleteTask(ctx, demoAlex, key); err != nil {
			return err
		}
	}
	_, err := h.Service.CompleteTask(ctx, demoSam, "homework")
	return err
}

func (h *Handler) loadStreakWeekScenario(ctx context.Context) error {
	if err := h.seedMembers(ctx); err != nil {
		return err
	}
	now := h.Calendar.Now()
	for i := 7; i >= 1; i-- {
		if err := h.backfill(ctx, demoAlex, "homework", now.AddDate(0, 0, -i)); err != nil {
			return err
		}
	}
	for i := 2; i >= 1; i-- {
		if err := h.backfill(ctx, demoSam, "dishes", now.AddDate(0, 0, -i)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadLotteryReadyScenario(ctx context.Context) error {
	if err := h.loadStreakWeekScenario(ctx); err != nil {
		return err
	}
	if _, err := h.Service.Earn(ctx, demoAlex, "Great report card", 50, "study"); err != nil {
		return err
	}
	for _, m := range []bank.MemberID{demoAlex, demoSam} {
		if _, err := h.Service.GrantEligibleBadges(ctx, m, DemoFamily); err != nil {
			return err
		}
	}
	return nil
}
