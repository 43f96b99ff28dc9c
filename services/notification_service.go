package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"recycle-pickup-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB       *gorm.DB
	Registry *SessionRegistry
}

func NewNotificationService(db *gorm.DB, registry *SessionRegistry) *NotificationService {
	return &NotificationService{DB: db, Registry: registry}
}

// Publish persists an event for the target participant and pushes it to every
// live channel. Persist-then-push: the row is the source of truth, the push is
// best effort, and the watcher sweeps whatever the push missed.
func (s *NotificationService) Publish(targetID string, kind models.NotificationKind, message string, metadata map[string]interface{}) error {
	var metaJSON string
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return internalError("failed to encode notification metadata", err)
		}
		metaJSON = string(raw)
	}

	ev := models.NotificationEvent{
		ID:                  uuid.NewString(),
		TargetParticipantID: targetID,
		Kind:                kind,
		Message:             message,
		Metadata:            metaJSON,
	}
	if err := s.DB.Create(&ev).Error; err != nil {
		return internalError("failed to persist notification", err)
	}

	if s.Registry.Dispatch(targetID, ev) > 0 {
		s.markDelivered(ev.ID)
	}
	return nil
}

// PublishBestEffort is Publish for callers that must not fail on notification
// problems: the state change already landed, so errors are logged and absorbed.
func (s *NotificationService) PublishBestEffort(targetID string, kind models.NotificationKind, message string, metadata map[string]interface{}) {
	if err := s.Publish(targetID, kind, message, metadata); err != nil {
		log.Printf("⚠️ [NOTIFY] Failed to publish to %s: %v", targetID, err)
	}
}

func (s *NotificationService) markDelivered(ids ...string) {
	if len(ids) == 0 {
		return
	}
	if err := s.DB.Model(&models.NotificationEvent{}).
		Where("id IN ?", ids).
		Update("delivered", true).Error; err != nil {
		log.Printf("⚠️ [NOTIFY] Failed to mark %d event(s) delivered: %v", len(ids), err)
	}
}

// ListForParticipant returns the participant's recent events, newest first.
func (s *NotificationService) ListForParticipant(participantID string, limit int) ([]models.NotificationEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.NotificationEvent
	if err := s.DB.
		Where("target_participant_id = ?", participantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, internalError("failed to list notifications", err)
	}
	return events, nil
}

// StreamSSE streams the authenticated participant's notification events over
// a server-sent-events connection. The channel registered here is what the
// registry fans out to; one connection per device, any number per participant.
func (s *NotificationService) StreamSSE(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ch := s.Registry.Register(participantID)
	ctx := c.Context()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.Registry.Unregister(participantID, ch)

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					log.Printf("SSE encode error for participant %s: %v", participantID, err)
					continue
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
