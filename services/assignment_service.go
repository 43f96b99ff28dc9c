package services

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"time"

	"recycle-pickup-system/models"
	"recycle-pickup-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// AssignmentService enforces the request lifecycle state machine. Every
// state-changing operation is a single conditional UPDATE keyed on the request
// id plus the expected prior state (and owner where relevant); the engine
// branches on RowsAffected, never on a separate read-then-write check. That is
// what makes concurrent claims and duplicate completions safe without locks.
type AssignmentService struct {
	DB       *gorm.DB
	Accounts *AccountService
	Notifier *NotificationService
}

func NewAssignmentService(db *gorm.DB, accounts *AccountService, notifier *NotificationService) *AssignmentService {
	return &AssignmentService{DB: db, Accounts: accounts, Notifier: notifier}
}

// CreateRequestInput carries the requester-supplied fields of a new request.
type CreateRequestInput struct {
	WasteCategory     models.WasteCategory `json:"waste_category"`
	EstimatedWeightKg float64              `json:"estimated_weight_kg"`
	PickupAddress     string               `json:"pickup_address"`
	PickupDate        string               `json:"pickup_date"`
	PickupTime        string               `json:"pickup_time"`
	ContactNumber     string               `json:"contact_number"`
	Instructions      string               `json:"instructions"`
}

// Create validates the input and persists a new request in state pending,
// owned by the caller.
func (s *AssignmentService) Create(caller Caller, input CreateRequestInput) (*models.PickupRequest, error) {
	if !caller.HasRole(RoleRequester) && !caller.HasRole(RoleAdmin) {
		return nil, notAuthorizedError("only requesters can create pickup requests")
	}
	if !models.ValidWasteCategory(input.WasteCategory) {
		return nil, validationError("unknown waste category %q", input.WasteCategory)
	}
	if input.EstimatedWeightKg <= 0 {
		return nil, validationError("estimated_weight_kg must be positive")
	}
	for field, value := range map[string]string{
		"pickup_address": input.PickupAddress,
		"pickup_date":    input.PickupDate,
		"pickup_time":    input.PickupTime,
		"contact_number": input.ContactNumber,
	} {
		if value == "" {
			return nil, validationError("%s is required", field)
		}
	}

	req := models.PickupRequest{
		ID:                uuid.NewString(),
		RequesterID:       caller.ID,
		WasteCategory:     input.WasteCategory,
		EstimatedWeightKg: input.EstimatedWeightKg,
		PickupAddress:     input.PickupAddress,
		PickupDate:        input.PickupDate,
		PickupTime:        input.PickupTime,
		ContactNumber:     input.ContactNumber,
		Instructions:      input.Instructions,
		LifecycleState:    models.StatePending,
	}
	if err := s.DB.Create(&req).Error; err != nil {
		return nil, internalError("failed to create pickup request", err)
	}
	return &req, nil
}

// ListOpen returns requests still pending plus the calling agent's active
// assignments. Finished work drops off: assigned_agent_id survives into the
// terminal states, so the assigned branch is pinned to accepted/in_progress.
func (s *AssignmentService) ListOpen(caller Caller) ([]models.PickupRequest, error) {
	if !caller.IsAgent() {
		return nil, notAuthorizedError("only agents can list open requests")
	}
	var requests []models.PickupRequest
	if err := s.DB.
		Where("lifecycle_state = ? OR (assigned_agent_id = ? AND lifecycle_state IN ?)",
			models.StatePending, caller.ID,
			[]models.LifecycleState{models.StateAccepted, models.StateInProgress}).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, internalError("failed to list open requests", err)
	}
	return requests, nil
}

// ListByState returns every request in the given state. Admin only.
func (s *AssignmentService) ListByState(caller Caller, state models.LifecycleState) ([]models.PickupRequest, error) {
	if !caller.HasRole(RoleAdmin) {
		return nil, notAuthorizedError("only administrators can list by state")
	}
	switch state {
	case models.StatePending, models.StateAccepted, models.StateInProgress, models.StateCompleted, models.StateRejected:
	default:
		return nil, validationError("unknown lifecycle state %q", state)
	}
	var requests []models.PickupRequest
	if err := s.DB.
		Where("lifecycle_state = ?", state).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, internalError("failed to list requests", err)
	}
	return requests, nil
}

// ListMine returns the caller's own requests, newest first.
func (s *AssignmentService) ListMine(caller Caller) ([]models.PickupRequest, error) {
	var requests []models.PickupRequest
	if err := s.DB.
		Where("requester_id = ?", caller.ID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, internalError("failed to list requests", err)
	}
	return requests, nil
}

// Claim atomically takes ownership of a pending request for the calling agent.
// At most one agent can ever win this, no matter how many race for it: the
// WHERE clause on the prior state is the only arbiter.
func (s *AssignmentService) Claim(caller Caller, requestID string) (*models.PickupRequest, error) {
	if !caller.IsAgent() {
		return nil, notAuthorizedError("only agents can claim requests")
	}

	result := s.DB.Model(&models.PickupRequest{}).
		Where("id = ? AND lifecycle_state = ?", requestID, models.StatePending).
		Updates(map[string]interface{}{
			"lifecycle_state":   models.StateAccepted,
			"assigned_agent_id": caller.ID,
		})
	if result.Error != nil {
		return nil, internalError("claim update failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.explainMissedUpdate(requestID, "request is no longer pending")
	}

	req, err := s.reload(requestID)
	if err != nil {
		return nil, err
	}
	s.appendActivity(caller.ID, requestID, models.ActionClaimed)
	s.Notifier.PublishBestEffort(req.RequesterID, models.NotificationInfo,
		fmt.Sprintf("%s accepted your %s pickup request", s.agentName(caller.ID), req.WasteCategory),
		map[string]interface{}{
			"request_id":      req.ID,
			"lifecycle_state": req.LifecycleState,
		})
	return req, nil
}

// Reject moves a pending request to the rejected terminal state. A second
// reject of the same request fails: the state is no longer pending.
func (s *AssignmentService) Reject(caller Caller, requestID string) (*models.PickupRequest, error) {
	if !caller.IsAgent() {
		return nil, notAuthorizedError("only agents can reject requests")
	}

	result := s.DB.Model(&models.PickupRequest{}).
		Where("id = ? AND lifecycle_state = ?", requestID, models.StatePending).
		Update("lifecycle_state", models.StateRejected)
	if result.Error != nil {
		return nil, internalError("reject update failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.explainMissedUpdate(requestID, "request is no longer pending")
	}

	req, err := s.reload(requestID)
	if err != nil {
		return nil, err
	}
	s.Notifier.PublishBestEffort(req.RequesterID, models.NotificationWarning,
		fmt.Sprintf("Your %s pickup request was declined", req.WasteCategory),
		map[string]interface{}{
			"request_id":      req.ID,
			"lifecycle_state": req.LifecycleState,
		})
	return req, nil
}

// Start moves an accepted request to in_progress. Only the assigned agent can
// do this; ownership is part of the conditional update itself.
func (s *AssignmentService) Start(caller Caller, requestID string) (*models.PickupRequest, error) {
	if !caller.IsAgent() {
		return nil, notAuthorizedError("only agents can start pickups")
	}

	result := s.DB.Model(&models.PickupRequest{}).
		Where("id = ? AND lifecycle_state = ? AND assigned_agent_id = ?",
			requestID, models.StateAccepted, caller.ID).
		Update("lifecycle_state", models.StateInProgress)
	if result.Error != nil {
		return nil, internalError("start update failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.explainMissedOwnedUpdate(requestID, caller, "request is not ready to start")
	}

	req, err := s.reload(requestID)
	if err != nil {
		return nil, err
	}
	s.appendActivity(caller.ID, requestID, models.ActionStarted)
	s.Notifier.PublishBestEffort(req.RequesterID, models.NotificationInfo,
		fmt.Sprintf("%s is on the way for your %s pickup", s.agentName(caller.ID), req.WasteCategory),
		map[string]interface{}{
			"request_id":      req.ID,
			"lifecycle_state": req.LifecycleState,
		})
	return req, nil
}

// Complete finishes an in-progress pickup: sets the terminal state, the reward
// amount and the completion time in one conditional update, and credits the
// requester's ledger only when that update actually changed a row. A retried
// complete therefore never double-credits: the second update matches nothing.
func (s *AssignmentService) Complete(caller Caller, requestID string) (*models.PickupRequest, error) {
	if !caller.IsAgent() {
		return nil, notAuthorizedError("only agents can complete pickups")
	}

	// Weight and category are immutable after create, so reading them ahead of
	// the conditional update is safe.
	var existing models.PickupRequest
	if err := s.DB.First(&existing, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("pickup request %s not found", requestID)
		}
		return nil, internalError("failed to load pickup request", err)
	}
	points := CalculateReward(existing.EstimatedWeightKg, existing.WasteCategory)
	now := time.Now()

	result := s.DB.Model(&models.PickupRequest{}).
		Where("id = ? AND lifecycle_state = ? AND assigned_agent_id = ?",
			requestID, models.StateInProgress, caller.ID).
		Updates(map[string]interface{}{
			"lifecycle_state": models.StateCompleted,
			"reward_points":   points,
			"completed_at":    now,
		})
	if result.Error != nil {
		return nil, internalError("complete update failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.explainMissedOwnedUpdate(requestID, caller, "request is not in progress")
	}

	if err := s.Accounts.Credit(existing.RequesterID, points); err != nil {
		// The transition landed but the credit did not. Surface it loudly;
		// the ledger is now short exactly one credit for this request.
		log.Printf("❌ [ENGINE] Completed request %s but failed to credit %d point(s) to %s: %v",
			requestID, points, existing.RequesterID, err)
		return nil, internalError("pickup completed but reward credit failed", err)
	}

	req, err := s.reload(requestID)
	if err != nil {
		return nil, err
	}
	s.appendActivity(caller.ID, requestID, models.ActionCompleted)
	s.Notifier.PublishBestEffort(req.RequesterID, models.NotificationSuccess,
		fmt.Sprintf("Your %s pickup is complete, you earned %d points", req.WasteCategory, points),
		map[string]interface{}{
			"request_id":      req.ID,
			"lifecycle_state": req.LifecycleState,
			"reward_points":   points,
		})
	return req, nil
}

// AttachPhoto uploads a waste photo for the caller's own request and stores
// the resulting object URL on the record.
func (s *AssignmentService) AttachPhoto(caller Caller, requestID string, photo *multipart.FileHeader) (*models.PickupRequest, error) {
	var req models.PickupRequest
	if err := s.DB.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("pickup request %s not found", requestID)
		}
		return nil, internalError("failed to load pickup request", err)
	}
	if req.RequesterID != caller.ID && !caller.HasRole(RoleAdmin) {
		return nil, notAuthorizedError("only the requester can attach a photo")
	}
	if photo.Size > 10*1024*1024 {
		return nil, validationError("photo too large (max 10MB)")
	}

	ext := filepath.Ext(photo.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("photos/%s-%s%s", slug.Make(string(req.WasteCategory)), uuid.NewString(), ext)
	url, err := utils.UploadFileToR2(photo, key)
	if err != nil {
		return nil, internalError("failed to upload photo", err)
	}

	if err := s.DB.Model(&models.PickupRequest{}).
		Where("id = ?", requestID).
		Update("photo_url", url).Error; err != nil {
		return nil, internalError("failed to store photo URL", err)
	}
	return s.reload(requestID)
}

// explainMissedUpdate turns a zero-row conditional update into the right
// caller-facing error for operations that do not require ownership: either the
// id is unknown or the state no longer matches. Notably, an agent who loses a
// claim race gets InvalidTransition: the request was simply no longer pending.
// Diagnostic only; the update already decided the outcome.
func (s *AssignmentService) explainMissedUpdate(requestID, hint string) error {
	var req models.PickupRequest
	if err := s.DB.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("pickup request %s not found", requestID)
		}
		return internalError("failed to inspect pickup request", err)
	}
	return invalidTransitionError("%s (current state: %s)", hint, req.LifecycleState)
}

// explainMissedOwnedUpdate is explainMissedUpdate for start/complete, where
// another agent holding the assignment is NotAuthorized regardless of state.
func (s *AssignmentService) explainMissedOwnedUpdate(requestID string, caller Caller, hint string) error {
	var req models.PickupRequest
	if err := s.DB.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("pickup request %s not found", requestID)
		}
		return internalError("failed to inspect pickup request", err)
	}
	if req.AssignedAgentID != nil && *req.AssignedAgentID != caller.ID {
		return notAuthorizedError("request %s is assigned to another agent", requestID)
	}
	return invalidTransitionError("%s (current state: %s)", hint, req.LifecycleState)
}

func (s *AssignmentService) reload(requestID string) (*models.PickupRequest, error) {
	var req models.PickupRequest
	if err := s.DB.First(&req, "id = ?", requestID).Error; err != nil {
		return nil, internalError("failed to reload pickup request", err)
	}
	return &req, nil
}

// appendActivity writes the audit entry for an agent action. The state change
// has already committed, so a failed append is logged rather than unwound.
func (s *AssignmentService) appendActivity(agentID, requestID string, action models.AgentAction) {
	record := models.ActivityRecord{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		RequestID: requestID,
		Action:    action,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		log.Printf("⚠️ [ENGINE] Failed to append %s activity for request %s: %v", action, requestID, err)
	}
}

// agentName resolves a display name from the participant mirror, falling back
// to a generic label when the mirror has not synced the agent yet.
func (s *AssignmentService) agentName(agentID string) string {
	var mirror models.ParticipantMirror
	if err := s.DB.Where("external_participant_id = ?", agentID).First(&mirror).Error; err != nil {
		return "A collector"
	}
	return mirror.DisplayName()
}

// ActivityForRequest returns the audit trail of a single request, oldest first.
func (s *AssignmentService) ActivityForRequest(caller Caller, requestID string) ([]models.ActivityRecord, error) {
	if !caller.IsAgent() {
		return nil, notAuthorizedError("only agents can view request activity")
	}
	var records []models.ActivityRecord
	if err := s.DB.
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, internalError("failed to list activity", err)
	}
	return records, nil
}
