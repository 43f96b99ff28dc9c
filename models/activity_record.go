package models

import "time"

// AgentAction is the kind of action an agent took on a request.
type AgentAction string

const (
	ActionClaimed   AgentAction = "claimed"
	ActionStarted   AgentAction = "started"
	ActionCompleted AgentAction = "completed"
)

// ActivityRecord is one append-only audit entry of an agent action on a request.
type ActivityRecord struct {
	ID        string      `gorm:"primaryKey;type:uuid;not null" json:"id"`
	AgentID   string      `gorm:"type:uuid;index;not null" json:"agent_id"`
	RequestID string      `gorm:"type:uuid;index;not null" json:"request_id"`
	Action    AgentAction `gorm:"type:varchar(32);not null" json:"action"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}
