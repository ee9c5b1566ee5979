////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package event delivers component events to registered callbacks and holds
// the single user-visible error of each sync area.
package event

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/stoppable"
)

// reportableEvent is an event queued for delivery.
type reportableEvent struct {
	Priority  int
	Category  string
	EventType string
	Details   string
}

// String returns a human-readable form of the event for logging. This function
// adheres to the fmt.Stringer interface.
func (e reportableEvent) String() string {
	return fmt.Sprintf("Event(%d, %s, %s, %s)", e.Priority, e.Category,
		e.EventType, e.Details)
}

// Manager queues reported events and hands them to every registered callback
// from a single delivery goroutine.
type Manager struct {
	eventCh  chan reportableEvent
	eventCbs sync.Map
}

// NewManager returns a Manager with a queue of the given size.
func NewManager(queueSize int) *Manager {
	return &Manager{
		eventCh: make(chan reportableEvent, queueSize),
	}
}

// Report queues an event. Events are dropped, with an error log, when the
// queue is full.
func (m *Manager) Report(priority int, category, evtType, details string) {
	re := reportableEvent{
		Priority:  priority,
		Category:  category,
		EventType: evtType,
		Details:   details,
	}
	select {
	case m.eventCh <- re:
		jww.TRACE.Printf("[Event] Reported: %s", re)
	default:
		jww.ERROR.Printf("[Event] Queue full, unable to report: %s", re)
	}
}

// RegisterEventCallback records the given function to receive events under
// name. Returns an error if the name is already taken.
func (m *Manager) RegisterEventCallback(name string, cb Callback) error {
	_, existsAlready := m.eventCbs.LoadOrStore(name, cb)
	if existsAlready {
		return errors.Errorf("key %s already exists as event callback", name)
	}
	return nil
}

// UnregisterEventCallback deletes the named callback.
func (m *Manager) UnregisterEventCallback(name string) {
	m.eventCbs.Delete(name)
}

// Service starts the delivery goroutine.
func (m *Manager) Service() stoppable.Stoppable {
	stop := stoppable.NewSingle("EventReporting")
	go m.reportEventsHandler(stop)
	return stop
}

func (m *Manager) reportEventsHandler(stop *stoppable.Single) {
	jww.DEBUG.Print("[Event] Delivery routine started")
	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Print("[Event] Stopping delivery routine")
			stop.ToStopped()
			return
		case evt := <-m.eventCh:
			// Callbacks run inline; a slow callback backs up the queue and
			// Report starts dropping.
			m.eventCbs.Range(func(_, cb interface{}) bool {
				cb.(Callback)(evt.Priority, evt.Category, evt.EventType,
					evt.Details)
				return true
			})
		}
	}
}
