package models

import (
	"time"

	"gorm.io/gorm"
)

// ParticipantMirror is a local snapshot of participant profile data needed for
// display (notification messages, agent names on listings). Owned by the
// profile service; populated here via the sync worker, never edited locally.
type ParticipantMirror struct {
	ID                    string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ExternalParticipantID string     `gorm:"uniqueIndex;not null" json:"external_participant_id"`
	Username              string     `gorm:"index;not null" json:"username"`
	Email                 string     `json:"email,omitempty"`
	FirstName             *string    `json:"first_name,omitempty"`
	LastName              *string    `json:"last_name,omitempty"`
	Phone                 *string    `json:"phone,omitempty"`
	AccountStatus         string     `json:"account_status,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName prefers the real name, falling back to the username.
func (p *ParticipantMirror) DisplayName() string {
	if p.FirstName != nil && *p.FirstName != "" {
		if p.LastName != nil && *p.LastName != "" {
			return *p.FirstName + " " + *p.LastName
		}
		return *p.FirstName
	}
	return p.Username
}
