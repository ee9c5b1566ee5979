////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package event

import (
	"sync"
	"testing"
	"time"
)

func TestManager_Report(t *testing.T) {
	var mux sync.Mutex
	evts := make([]reportableEvent, 0)
	myCb := func(priority int, cat, ty, det string) {
		mux.Lock()
		defer mux.Unlock()
		evts = append(evts, reportableEvent{
			Priority:  priority,
			Category:  cat,
			EventType: ty,
			Details:   det,
		})
	}
	count := func() int {
		mux.Lock()
		defer mux.Unlock()
		return len(evts)
	}

	m := NewManager(100)
	stop := m.Service()
	defer stop.Close()

	if err := m.RegisterEventCallback("test", myCb); err != nil {
		t.Fatalf("Failed to register callback: %+v", err)
	}
	if err := m.RegisterEventCallback("test", myCb); err == nil {
		t.Errorf("Registering the same name twice did not fail.")
	}

	m.Report(Info, CategorySync, "PollingStarted", "c1")
	m.Report(Warning, CategoryRegistry, "Rollback", "c2")
	m.Report(Error, CategoryMLS, "BootstrapFailed", "upload")

	deadline := time.Now().Add(time.Second)
	for count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if count() != 3 {
		t.Fatalf("Unexpected number of events.\nexpected: %d\nreceived: %d",
			3, count())
	}

	mux.Lock()
	if evts[1].Category != CategoryRegistry || evts[2].Details != "upload" {
		t.Errorf("Events delivered out of order: %v", evts)
	}
	mux.Unlock()

	m.UnregisterEventCallback("test")
	m.Report(Info, CategorySync, "PollingStopped", "c1")
	time.Sleep(50 * time.Millisecond)
	if count() != 3 {
		t.Errorf("Event delivered after unregistering.")
	}
}

// Tests that a full queue drops events instead of blocking.
func TestManager_Report_QueueFull(t *testing.T) {
	m := NewManager(1)
	m.Report(Info, CategorySync, "a", "")
	m.Report(Info, CategorySync, "b", "")
	if len(m.eventCh) != 1 {
		t.Errorf("Unexpected queue length.\nexpected: %d\nreceived: %d",
			1, len(m.eventCh))
	}
}
