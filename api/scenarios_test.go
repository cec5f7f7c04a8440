package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/lottery"
)

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: a fresh handler
	// WHEN: each scenario is loaded in turn
	// THEN: every load succeeds and becomes the current scenario

	env := setupTestHandler(t)

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = env.do(t, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, s.ID, decode[ScenarioDTO](t, rec).ID)

			rec = env.do(t, http.MethodGet, "/api/families/demo-family/members", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decode[[]MemberDTO](t, rec), 3)
		})
	}
}

func TestScenario_UnknownScenario(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_StreakWeekGrantsStreakBadges(t *testing.T) {
	// GIVEN: seven backdated days of homework
	// WHEN: badges are granted over RPC
	// THEN: both streak badges and the first task badge are awarded

	env := setupTestHandler(t)
	rec := env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "streak-week"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.rpc(t, "grant_eligible_badges", RPCRequest{MemberID: string(demoAlex), FamilyID: string(DemoFamily)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	grant := decode[GrantResponse](t, rec)
	keys := make([]string, len(grant.Badges))
	for i, b := range grant.Badges {
		keys[i] = b.ConditionKey
	}
	assert.ElementsMatch(t, []string{"first_task", "streak_3", "streak_7"}, keys)
}

func TestScenario_LotteryReadyHasTickets(t *testing.T) {
	env := setupTestHandler(t)
	rec := env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "lottery-ready"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.rpc(t, "get_lottery_stats", RPCRequest{MemberID: string(demoAlex)})
	require.Equal(t, http.StatusOK, rec.Code)
	// first_task, streak_3, streak_7 and points_100
	assert.Equal(t, 4, decode[lottery.Stats](t, rec).PendingBadgeCount)

	rec = env.rpc(t, "lottery_from_exchange", RPCRequest{MemberID: string(demoAlex), FamilyID: string(DemoFamily)})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScenario_ReloadLeavesOtherFamilies(t *testing.T) {
	env := setupTestHandler(t)
	env.seedFamily(t)

	for _, id := range []string{"starter-family", "starter-family"} {
		rec := env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/families/fam-1/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]MemberDTO](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/families/demo-family/rewards?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RewardDTO](t, rec), 1)
}

func TestPruneScheduler_RunOnce(t *testing.T) {
	// GIVEN: an exchange draw recorded a quota counter today
	// WHEN: the clock moves past the retention window and a prune runs
	// THEN: the counter is removed once

	env := setupTestHandler(t)
	env.seedFamily(t)
	rec := env.do(t, http.MethodPost, "/api/members/kid/earn", PointsRequest{Title: "Gift", Points: 20})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.rpc(t, "lottery_from_exchange", RPCRequest{MemberID: "kid", FamilyID: "fam-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ps := NewPruneScheduler(env.handler.Service, nil)
	assert.Equal(t, int64(0), ps.RunOnce(context.Background()))

	env.clock.Advance(10 * 24 * time.Hour)
	assert.Equal(t, int64(1), ps.RunOnce(context.Background()))
	assert.Equal(t, int64(0), ps.RunOnce(context.Background()))
}

func TestPruneScheduler_DisabledDoesNotStart(t *testing.T) {
	env := setupTestHandler(t)
	ps := NewPruneScheduler(env.handler.Service, nil)
	ps.Enabled = false

	ps.Start()
	defer ps.Stop()

	assert.Nil(t, ps.ticker)
}
