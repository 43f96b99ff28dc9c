package services

import (
	"log"

	"recycle-pickup-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountService struct {
	DB *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db}
}

// EnsureAccount makes sure a ledger row exists for the participant (idempotent).
// Two first-ever credits for the same participant can race; the conflict clause
// makes the losing create a no-op instead of a unique-constraint error.
func (s *AccountService) EnsureAccount(participantID string) (*models.Account, error) {
	seed := models.Account{ID: participantID, PointBalance: 0}
	if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, internalError("failed to create account", err)
	}
	var acct models.Account
	if err := s.DB.First(&acct, "id = ?", participantID).Error; err != nil {
		return nil, internalError("failed to load account", err)
	}
	return &acct, nil
}

// Credit adds points to the participant's balance with a single increment
// statement. A zero-point credit still ensures the ledger row exists but
// skips the increment: tiny pickups can legitimately round to zero points.
// Callers gate this on their own conditional update so a retried completion
// never reaches here twice for the same request.
func (s *AccountService) Credit(participantID string, points int64) error {
	if points < 0 {
		return validationError("credit amount must not be negative, got %d", points)
	}
	if _, err := s.EnsureAccount(participantID); err != nil {
		return err
	}
	if points == 0 {
		return nil
	}

	result := s.DB.Model(&models.Account{}).
		Where("id = ?", participantID).
		Update("point_balance", gorm.Expr("point_balance + ?", points))
	if result.Error != nil {
		return internalError("failed to credit account", result.Error)
	}
	if result.RowsAffected == 0 {
		// EnsureAccount just created the row; this means concurrent deletion,
		// which nothing in the system does.
		log.Printf("❌ [LEDGER] Credit matched no account row for %s", participantID)
		return internalError("account row vanished during credit", nil)
	}
	return nil
}

// Balance returns the participant's current point balance, creating the
// account lazily so brand-new participants read zero instead of a 404.
func (s *AccountService) Balance(participantID string) (*models.Account, error) {
	return s.EnsureAccount(participantID)
}
