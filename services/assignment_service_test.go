package services

import (
	"sync"
	"testing"

	"recycle-pickup-system/models"

	"github.com/google/uuid"
)

func TestCreateValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	requester := requesterCaller(uuid.NewString())

	badCategory := validInput()
	badCategory.WasteCategory = "styrofoam"
	if _, err := engine.Create(requester, badCategory); KindOf(err) != ErrValidation {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}

	zeroWeight := validInput()
	zeroWeight.EstimatedWeightKg = 0
	if _, err := engine.Create(requester, zeroWeight); KindOf(err) != ErrValidation {
		t.Fatalf("expected validation error for zero weight, got %v", err)
	}

	noAddress := validInput()
	noAddress.PickupAddress = ""
	if _, err := engine.Create(requester, noAddress); KindOf(err) != ErrValidation {
		t.Fatalf("expected validation error for missing address, got %v", err)
	}

	agentOnly := Caller{ID: uuid.NewString(), Roles: []string{RoleAgent}}
	if _, err := engine.Create(agentOnly, validInput()); KindOf(err) != ErrNotAuthorized {
		t.Fatalf("expected not-authorized for agent-only caller, got %v", err)
	}

	req, err := engine.Create(requester, validInput())
	if err != nil {
		t.Fatalf("valid create failed: %v", err)
	}
	if req.LifecycleState != models.StatePending {
		t.Fatalf("new request state = %s, want pending", req.LifecycleState)
	}
	if req.AssignedAgentID != nil || req.RewardPoints != nil || req.CompletedAt != nil {
		t.Fatalf("new request carries assignment/reward fields: %+v", req)
	}
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	req, err := engine.Create(requesterCaller(uuid.NewString()), validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const racers = 16
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = engine.Claim(agentCaller(uuid.NewString()), req.ID)
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case KindOf(err) == ErrInvalidTransition:
			losses++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", wins)
	}
	if losses != racers-1 {
		t.Fatalf("expected %d invalid-transition losses, got %d", racers-1, losses)
	}
}

func TestClaimUnknownIDIsNotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.Claim(agentCaller(uuid.NewString()), uuid.NewString())
	if KindOf(err) != ErrNotFound {
		t.Fatalf("expected not-found for unknown id, got %v", err)
	}
}

func TestClaimRequiresAgentRole(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	req, _ := engine.Create(requesterCaller(uuid.NewString()), validInput())
	_, err := engine.Claim(requesterCaller(uuid.NewString()), req.ID)
	if KindOf(err) != ErrNotAuthorized {
		t.Fatalf("expected not-authorized for requester-role claim, got %v", err)
	}
}

func TestClaimRecordsActivityAndNotifies(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	requesterID := uuid.NewString()
	req, _ := engine.Create(requesterCaller(requesterID), validInput())
	agent := agentCaller(uuid.NewString())

	claimed, err := engine.Claim(agent, req.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.LifecycleState != models.StateAccepted {
		t.Fatalf("claimed state = %s, want accepted", claimed.LifecycleState)
	}
	if claimed.AssignedAgentID == nil || *claimed.AssignedAgentID != agent.ID {
		t.Fatalf("assigned agent = %v, want %s", claimed.AssignedAgentID, agent.ID)
	}

	var records []models.ActivityRecord
	if err := db.Where("request_id = ?", req.ID).Find(&records).Error; err != nil {
		t.Fatalf("failed to load activity: %v", err)
	}
	if len(records) != 1 || records[0].Action != models.ActionClaimed || records[0].AgentID != agent.ID {
		t.Fatalf("unexpected activity trail: %+v", records)
	}

	var events []models.NotificationEvent
	if err := db.Where("target_participant_id = ?", requesterID).Find(&events).Error; err != nil {
		t.Fatalf("failed to load notifications: %v", err)
	}
	if len(events) != 1 || events[0].Kind != models.NotificationInfo {
		t.Fatalf("unexpected notification rows: %+v", events)
	}
}

func TestRejectOnlyFromPending(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	req, _ := engine.Create(requesterCaller(uuid.NewString()), validInput())
	agent := agentCaller(uuid.NewString())

	rejected, err := engine.Reject(agent, req.ID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.LifecycleState != models.StateRejected {
		t.Fatalf("state = %s, want rejected", rejected.LifecycleState)
	}

	// Second reject must fail: the state is no longer pending.
	if _, err := engine.Reject(agent, req.ID); KindOf(err) != ErrInvalidTransition {
		t.Fatalf("expected invalid-transition on double reject, got %v", err)
	}

	// Rejected is terminal; nothing claims it afterwards.
	if _, err := engine.Claim(agent, req.ID); KindOf(err) != ErrInvalidTransition {
		t.Fatalf("expected invalid-transition claiming a rejected request, got %v", err)
	}
}

func TestStartRequiresAssignee(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	req, _ := engine.Create(requesterCaller(uuid.NewString()), validInput())
	owner := agentCaller(uuid.NewString())
	intruder := agentCaller(uuid.NewString())

	if _, err := engine.Claim(owner, req.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	if _, err := engine.Start(intruder, req.ID); KindOf(err) != ErrNotAuthorized {
		t.Fatalf("expected not-authorized for non-assignee start, got %v", err)
	}

	started, err := engine.Start(owner, req.ID)
	if err != nil {
		t.Fatalf("assignee start failed: %v", err)
	}
	if started.LifecycleState != models.StateInProgress {
		t.Fatalf("state = %s, want in_progress", started.LifecycleState)
	}

	// Still not-authorized once in progress: ownership wins over state.
	if _, err := engine.Start(intruder, req.ID); KindOf(err) != ErrNotAuthorized {
		t.Fatalf("expected not-authorized for non-assignee start in progress, got %v", err)
	}
	if _, err := engine.Complete(intruder, req.ID); KindOf(err) != ErrNotAuthorized {
		t.Fatalf("expected not-authorized for non-assignee complete, got %v", err)
	}
}

func TestCompleteCreditsExactlyOnce(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	requesterID := uuid.NewString()
	req, _ := engine.Create(requesterCaller(requesterID), validInput())
	agent := agentCaller(uuid.NewString())

	if _, err := engine.Claim(agent, req.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.Start(agent, req.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done, err := engine.Complete(agent, req.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.LifecycleState != models.StateCompleted {
		t.Fatalf("state = %s, want completed", done.LifecycleState)
	}
	if done.RewardPoints == nil || *done.RewardPoints != 60 {
		t.Fatalf("reward points = %v, want 60 (5kg plastic)", done.RewardPoints)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	// Retry (duplicate delivery): must not credit again.
	if _, err := engine.Complete(agent, req.ID); KindOf(err) != ErrInvalidTransition {
		t.Fatalf("expected invalid-transition on repeated complete, got %v", err)
	}

	var acct models.Account
	if err := db.First(&acct, "id = ?", requesterID).Error; err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if acct.PointBalance != 60 {
		t.Fatalf("balance = %d, want 60 after duplicate completes", acct.PointBalance)
	}
}

func TestCompleteConcurrentCreditsOnce(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	requesterID := uuid.NewString()
	req, _ := engine.Create(requesterCaller(requesterID), validInput())
	agent := agentCaller(uuid.NewString())

	if _, err := engine.Claim(agent, req.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.Start(agent, req.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = engine.Complete(agent, req.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if KindOf(err) != ErrInvalidTransition {
			t.Fatalf("unexpected complete error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winning complete, got %d", wins)
	}

	var acct models.Account
	if err := db.First(&acct, "id = ?", requesterID).Error; err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if acct.PointBalance != 60 {
		t.Fatalf("balance = %d, want 60 after concurrent completes", acct.PointBalance)
	}
}

func TestCompleteZeroRewardStillFinishes(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	requesterID := uuid.NewString()
	agent := agentCaller(uuid.NewString())

	// 0.04kg organic rounds to zero points; completion must still land fully.
	tiny := validInput()
	tiny.WasteCategory = models.WasteOrganic
	tiny.EstimatedWeightKg = 0.04
	req, err := engine.Create(requesterCaller(requesterID), tiny)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := engine.Claim(agent, req.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.Start(agent, req.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done, err := engine.Complete(agent, req.ID)
	if err != nil {
		t.Fatalf("zero-reward complete failed: %v", err)
	}
	if done.LifecycleState != models.StateCompleted {
		t.Fatalf("state = %s, want completed", done.LifecycleState)
	}
	if done.RewardPoints == nil || *done.RewardPoints != 0 {
		t.Fatalf("reward points = %v, want 0", done.RewardPoints)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	var records []models.ActivityRecord
	if err := db.Where("request_id = ? AND action = ?", req.ID, models.ActionCompleted).
		Find(&records).Error; err != nil {
		t.Fatalf("failed to load activity: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("completed activity records = %d, want 1", len(records))
	}

	var events []models.NotificationEvent
	if err := db.Where("target_participant_id = ? AND kind = ?", requesterID, models.NotificationSuccess).
		Find(&events).Error; err != nil {
		t.Fatalf("failed to load notifications: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("success notifications = %d, want 1", len(events))
	}

	var acct models.Account
	if err := db.First(&acct, "id = ?", requesterID).Error; err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if acct.PointBalance != 0 {
		t.Fatalf("balance = %d, want 0", acct.PointBalance)
	}
}

func TestListOpenExcludesFinishedWork(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	requester := requesterCaller(uuid.NewString())
	agent := agentCaller(uuid.NewString())

	doneReq, _ := engine.Create(requester, validInput())
	rejectedReq, _ := engine.Create(requester, validInput())
	activeReq, _ := engine.Create(requester, validInput())

	if _, err := engine.Claim(agent, doneReq.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.Start(agent, doneReq.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := engine.Complete(agent, doneReq.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := engine.Reject(agent, rejectedReq.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := engine.Claim(agent, activeReq.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	open, err := engine.ListOpen(agent)
	if err != nil {
		t.Fatalf("list open failed: %v", err)
	}
	seen := map[string]bool{}
	for _, r := range open {
		seen[r.ID] = true
	}
	if seen[doneReq.ID] {
		t.Fatal("open list still carries a completed request")
	}
	if seen[rejectedReq.ID] {
		t.Fatal("open list still carries a rejected request")
	}
	if !seen[activeReq.ID] {
		t.Fatal("open list dropped an active assignment")
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	agent := agentCaller(uuid.NewString())

	req, _ := engine.Create(requesterCaller(uuid.NewString()), validInput())
	engine.Claim(agent, req.ID)
	engine.Start(agent, req.ID)
	if _, err := engine.Complete(agent, req.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if _, err := engine.Claim(agent, req.ID); KindOf(err) != ErrInvalidTransition {
		t.Fatalf("claim on completed: got %v", err)
	}
	if _, err := engine.Reject(agent, req.ID); KindOf(err) != ErrInvalidTransition {
		t.Fatalf("reject on completed: got %v", err)
	}
	if _, err := engine.Start(agent, req.ID); KindOf(err) != ErrInvalidTransition {
		t.Fatalf("start on completed: got %v", err)
	}
}

func TestListOpenScopesToCaller(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	requester := requesterCaller(uuid.NewString())
	me := agentCaller(uuid.NewString())
	other := agentCaller(uuid.NewString())

	pendingReq, _ := engine.Create(requester, validInput())
	mineReq, _ := engine.Create(requester, validInput())
	theirsReq, _ := engine.Create(requester, validInput())

	if _, err := engine.Claim(me, mineReq.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.Claim(other, theirsReq.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	open, err := engine.ListOpen(me)
	if err != nil {
		t.Fatalf("list open failed: %v", err)
	}
	seen := map[string]bool{}
	for _, r := range open {
		seen[r.ID] = true
	}
	if !seen[pendingReq.ID] || !seen[mineReq.ID] {
		t.Fatalf("open list missing pending or own assignment: %v", seen)
	}
	if seen[theirsReq.ID] {
		t.Fatal("open list leaked another agent's assignment")
	}

	if _, err := engine.ListOpen(requester); KindOf(err) != ErrNotAuthorized {
		t.Fatalf("expected not-authorized listing as requester, got %v", err)
	}
}
