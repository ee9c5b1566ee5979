////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package event

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/xx_network/primitives/netTime"
)

// ErrorState is the user-visible error of one area.
type ErrorState struct {
	Err error

	// Count is how many times the same error was set since it first appeared.
	Count int

	FirstSeen time.Time
	LastSeen  time.Time
}

// ErrorUpdate is called with the new state every time the slot changes. A nil
// state means the slot was cleared.
type ErrorUpdate func(state *ErrorState)

// ErrorSlot holds the single most recent user-visible error of an area.
// Repeats of the same error coalesce into one entry instead of stacking.
type ErrorSlot struct {
	area     string
	current  *ErrorState
	callback ErrorUpdate
	mux      sync.Mutex
}

// NewErrorSlot returns an empty slot for the named area.
func NewErrorSlot(area string) *ErrorSlot {
	return &ErrorSlot{area: area}
}

// Area returns the name of the area the slot belongs to.
func (s *ErrorSlot) Area() string {
	return s.area
}

// RegisterUpdateCallback sets the function called when the slot changes.
// Passing nil removes it.
func (s *ErrorSlot) RegisterUpdateCallback(cb ErrorUpdate) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.callback = cb
}

// Set records err as the area's error. Nil errors and cancellations are
// ignored. Returns true if the slot changed.
func (s *ErrorSlot) Set(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	now := netTime.Now()
	s.mux.Lock()
	if s.current != nil && s.current.Err.Error() == err.Error() {
		s.current.Count++
		s.current.LastSeen = now
	} else {
		s.current = &ErrorState{
			Err:       err,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	state := *s.current
	cb := s.callback
	s.mux.Unlock()

	if cb != nil {
		cb(&state)
	}
	return true
}

// Current returns a copy of the current error, or nil.
func (s *ErrorSlot) Current() *ErrorState {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.current == nil {
		return nil
	}
	state := *s.current
	return &state
}

// Acknowledge clears the slot.
func (s *ErrorSlot) Acknowledge() {
	s.mux.Lock()
	wasSet := s.current != nil
	s.current = nil
	cb := s.callback
	s.mux.Unlock()

	if wasSet && cb != nil {
		cb(nil)
	}
}
