package session

import (
	"context"
	"time"

	"github.com/cuemby/objstore/pkg/obs/log"
)

// scheduleAutosave arms the debounce timer on the session's first mutation
// since the last save, coalescing a burst of Insert/Delete calls into one
// Save after autosaveDelay of quiet. Grounded on the teacher's
// pkg/reconciler stop-channel idiom, adapted from a recurring ticker to a
// single coalesced deferral (§4.I; see DESIGN.md).
func (s *Session) scheduleAutosave() {
	if !s.autosaveEnabled {
		return
	}

	s.mu.Lock()
	if s.autosaveScheduled {
		s.mu.Unlock()
		return
	}
	s.autosaveScheduled = true
	s.mu.Unlock()

	s.autosaveTimer = time.AfterFunc(autosaveDelay, s.runAutosave)
}

func (s *Session) runAutosave() {
	logger := log.WithComponent("session")

	s.mu.Lock()
	if !s.autosaveEnabled {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Save(ctx); err != nil {
		logger.Error().Err(err).Msg("autosave failed, disabling autosave")
		s.mu.Lock()
		s.autosaveEnabled = false
		s.mu.Unlock()
		if s.onAutosaveError != nil {
			s.onAutosaveError(err)
		}
	}
}
