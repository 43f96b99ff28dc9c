package services

import (
	"encoding/json"
	"testing"

	"recycle-pickup-system/models"

	"github.com/google/uuid"
)

func TestPublishPersistsAndPushes(t *testing.T) {
	db := newTestDB(t)
	reg := NewSessionRegistry()
	notifier := NewNotificationService(db, reg)

	participant := uuid.NewString()
	ch := reg.Register(participant)

	err := notifier.Publish(participant, models.NotificationSuccess, "pickup complete",
		map[string]interface{}{"reward_points": 60})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != models.NotificationSuccess || ev.Message != "pickup complete" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(ev.Metadata), &meta); err != nil {
			t.Fatalf("metadata not JSON: %v", err)
		}
		if meta["reward_points"] != float64(60) {
			t.Fatalf("metadata reward_points = %v, want 60", meta["reward_points"])
		}
	default:
		t.Fatal("live channel did not receive the event")
	}

	var row models.NotificationEvent
	if err := db.First(&row, "target_participant_id = ?", participant).Error; err != nil {
		t.Fatalf("event row not persisted: %v", err)
	}
	if !row.Delivered {
		t.Fatal("event with a live channel not marked delivered")
	}
}

func TestPublishWithoutChannelStaysQueryable(t *testing.T) {
	db := newTestDB(t)
	notifier := NewNotificationService(db, NewSessionRegistry())

	participant := uuid.NewString()
	if err := notifier.Publish(participant, models.NotificationInfo, "claimed", nil); err != nil {
		t.Fatalf("publish to nobody failed: %v", err)
	}

	events, err := notifier.ListForParticipant(participant, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 1 || events[0].Delivered {
		t.Fatalf("expected one undelivered event, got %+v", events)
	}
}

func TestSweepDeliversQueuedEvents(t *testing.T) {
	db := newTestDB(t)
	reg := NewSessionRegistry()
	notifier := NewNotificationService(db, reg)

	participant := uuid.NewString()

	// Published while the participant was offline.
	if err := notifier.Publish(participant, models.NotificationInfo, "missed you", nil); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Participant connects; the sweep should hand over the queued event.
	ch := reg.Register(participant)
	notifier.sweepUndelivered()

	select {
	case ev := <-ch:
		if ev.Message != "missed you" {
			t.Fatalf("unexpected swept event: %+v", ev)
		}
	default:
		t.Fatal("sweep did not deliver the queued event")
	}

	var row models.NotificationEvent
	if err := db.First(&row, "target_participant_id = ?", participant).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if !row.Delivered {
		t.Fatal("swept event not marked delivered")
	}

	// A second sweep finds nothing to do.
	notifier.sweepUndelivered()
	select {
	case ev := <-ch:
		t.Fatalf("second sweep re-delivered event: %+v", ev)
	default:
	}
}
