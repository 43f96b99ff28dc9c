package services

import (
	"testing"

	"recycle-pickup-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database pinned to a single connection
// so every goroutine in a test sees the same store. The engine only relies on
// the atomic update-if-matches primitive, which sqlite provides the same as
// postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.PickupRequest{},
		&models.Account{},
		&models.ActivityRecord{},
		&models.NotificationEvent{},
		&models.ParticipantMirror{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// newTestEngine wires an engine against a fresh test store.
func newTestEngine(t *testing.T) (*AssignmentService, *gorm.DB, *SessionRegistry) {
	t.Helper()
	db := newTestDB(t)
	registry := NewSessionRegistry()
	notifier := NewNotificationService(db, registry)
	accounts := NewAccountService(db)
	return NewAssignmentService(db, accounts, notifier), db, registry
}

func requesterCaller(id string) Caller {
	return Caller{ID: id, Roles: []string{RoleRequester}}
}

func agentCaller(id string) Caller {
	return Caller{ID: id, Roles: []string{RoleAgent}}
}

func validInput() CreateRequestInput {
	return CreateRequestInput{
		WasteCategory:     models.WastePlastic,
		EstimatedWeightKg: 5,
		PickupAddress:     "12 Riverside Lane",
		PickupDate:        "2026-09-10",
		PickupTime:        "09:00",
		ContactNumber:     "+15550100",
	}
}
