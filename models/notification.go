package models

import "time"

// NotificationKind classifies a notification for client rendering.
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

// NotificationEvent is one addressed event for a single participant.
// Rows persist even when no live channel existed at publish time, so clients
// can still list them later; the delivered flag drives the fallback sweep.
type NotificationEvent struct {
	ID                  string           `gorm:"primaryKey;type:uuid;not null" json:"id"`
	TargetParticipantID string           `gorm:"type:uuid;index;not null" json:"target_participant_id"`
	Kind                NotificationKind `gorm:"type:varchar(16);not null" json:"kind"`
	Message             string           `gorm:"type:text;not null" json:"message"`
	Metadata            string           `gorm:"type:text" json:"metadata,omitempty"`
	Delivered           bool             `gorm:"default:false;index" json:"delivered"`
	CreatedAt           time.Time        `json:"created_at"`
}
