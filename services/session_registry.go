package services

import (
	"sync"

	"recycle-pickup-system/models"
)

// sessionBuffer is how many undrained events a single channel holds before
// further pushes to it are dropped (the row is still listable via pull).
const sessionBuffer = 16

// SessionRegistry maps a participant id to that participant's live real-time
// channels. One participant may hold several channels at once (multi-device).
// Pure in-process state; channels vanish with the serving process.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[chan models.NotificationEvent]struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]map[chan models.NotificationEvent]struct{}),
	}
}

// Register opens a new delivery channel for the participant and returns it.
// The caller must Unregister it when the connection closes.
func (r *SessionRegistry) Register(participantID string) chan models.NotificationEvent {
	ch := make(chan models.NotificationEvent, sessionBuffer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[participantID] == nil {
		r.sessions[participantID] = make(map[chan models.NotificationEvent]struct{})
	}
	r.sessions[participantID][ch] = struct{}{}
	return ch
}

// Unregister removes and closes a previously registered channel.
func (r *SessionRegistry) Unregister(participantID string, ch chan models.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[participantID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(r.sessions, participantID)
	}
	close(ch)
}

// Dispatch sends the event to every live channel of the target participant and
// returns how many channels took it. Zero receivers is not an error. A full
// channel is skipped rather than blocked on; a stalled client must not stall
// the engine.
func (r *SessionRegistry) Dispatch(participantID string, ev models.NotificationEvent) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for ch := range r.sessions[participantID] {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// ActiveChannels reports how many live channels the participant currently has.
func (r *SessionRegistry) ActiveChannels(participantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[participantID])
}
