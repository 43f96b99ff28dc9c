package services

import (
	"log"
	"time"

	"recycle-pickup-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartDeliverySweep runs the store-observation fallback: every few seconds it
// scans for undelivered events whose target currently has a live channel and
// re-dispatches them. The synchronous publish path is primary; this only
// catches events the push missed (or rows inserted by anything that bypassed
// Publish).
func (s *NotificationService) StartDeliverySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Second),
		gocron.NewTask(s.sweepUndelivered),
	)
}

func (s *NotificationService) sweepUndelivered() {
	var pending []models.NotificationEvent
	err := s.DB.
		Where("delivered = ?", false).
		Order("created_at ASC").
		Limit(200).
		Find(&pending).Error
	if err != nil {
		log.Printf("[NotifySweep] DB error: %v", err)
		return
	}

	var deliveredIDs []string
	for _, ev := range pending {
		if s.Registry.ActiveChannels(ev.TargetParticipantID) == 0 {
			continue
		}
		if s.Registry.Dispatch(ev.TargetParticipantID, ev) > 0 {
			deliveredIDs = append(deliveredIDs, ev.ID)
		}
	}
	if len(deliveredIDs) > 0 {
		s.markDelivered(deliveredIDs...)
		log.Printf("✅ [NotifySweep] Re-delivered %d queued event(s)", len(deliveredIDs))
	}
}
