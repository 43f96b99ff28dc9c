package models

import "time"

// Account holds a participant's reward point balance.
// The ID is the participant's own id (one account per participant).
// Balances only ever increase here; credits go through the ledger service's
// single-statement increment, never a read-modify-write.
type Account struct {
	ID           string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	PointBalance int64     `gorm:"not null;default:0" json:"point_balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
