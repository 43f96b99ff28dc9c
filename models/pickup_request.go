package models

import "time"

// WasteCategory is the fixed set of recyclable material categories.
type WasteCategory string

const (
	WastePlastic     WasteCategory = "plastic"
	WastePaper       WasteCategory = "paper"
	WasteElectronics WasteCategory = "electronics"
	WasteMetal       WasteCategory = "metal"
	WasteGlass       WasteCategory = "glass"
	WasteOrganic     WasteCategory = "organic"
	WasteMixed       WasteCategory = "mixed"
)

// ValidWasteCategory reports whether c is one of the known categories.
func ValidWasteCategory(c WasteCategory) bool {
	switch c {
	case WastePlastic, WastePaper, WasteElectronics, WasteMetal, WasteGlass, WasteOrganic, WasteMixed:
		return true
	}
	return false
}

// LifecycleState is the single authoritative fulfillment state of a request.
type LifecycleState string

const (
	StatePending    LifecycleState = "pending"
	StateAccepted   LifecycleState = "accepted"
	StateInProgress LifecycleState = "in_progress"
	StateCompleted  LifecycleState = "completed"
	StateRejected   LifecycleState = "rejected"
)

// PickupRequest is one recyclable-waste pickup request.
//
// assigned_agent_id is non-null iff the state is accepted/in_progress/completed;
// reward_points is non-null iff the state is completed. Both are set exactly once,
// through the assignment service's conditional updates, never written directly.
type PickupRequest struct {
	ID                string         `gorm:"primaryKey;type:uuid;not null" json:"id"`
	RequesterID       string         `gorm:"type:uuid;index;not null" json:"requester_id"`
	WasteCategory     WasteCategory  `gorm:"type:varchar(32);not null" json:"waste_category"`
	EstimatedWeightKg float64        `gorm:"not null" json:"estimated_weight_kg"`
	PickupAddress     string         `gorm:"type:text;not null" json:"pickup_address"`
	PickupDate        string         `gorm:"type:varchar(32);not null" json:"pickup_date"`
	PickupTime        string         `gorm:"type:varchar(32);not null" json:"pickup_time"`
	ContactNumber     string         `gorm:"type:varchar(32);not null" json:"contact_number"`
	Instructions      string         `gorm:"type:text" json:"instructions,omitempty"`
	PhotoURL          string         `gorm:"type:text" json:"photo_url,omitempty"`
	LifecycleState    LifecycleState `gorm:"type:varchar(32);not null;index" json:"lifecycle_state"`
	AssignedAgentID   *string        `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`
	RewardPoints      *int64         `json:"reward_points,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
