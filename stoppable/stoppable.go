////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable contains handles for the long-running goroutines of the
// sync engine (poll loops, cache maintenance). Every goroutine owns a Single,
// parents group them in a Multi, and callers stop them through Close.
package stoppable

import (
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	// Interval at which WaitForStopped checks the status.
	checkStoppedInterval = 5 * time.Millisecond

	waitTimeoutErr = "timed out after %s waiting for %q to stop; status %s"
)

// Stoppable is the interface for stopping a goroutine.
type Stoppable interface {
	// Close signals the goroutine to stop. It does not wait for it to exit.
	Close() error

	// GetStatus returns the current Status.
	GetStatus() Status

	// IsRunning returns true if the goroutine has not been asked to stop.
	IsRunning() bool

	// IsStopping returns true if Close was called but the goroutine has not
	// yet exited.
	IsStopping() bool

	// IsStopped returns true once the goroutine has exited.
	IsStopped() bool

	// Name returns the name of the goroutine(s).
	Name() string
}

// WaitForStopped blocks until the Stoppable reports Stopped or the timeout
// elapses.
func WaitForStopped(s Stoppable, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(checkStoppedInterval)
	defer ticker.Stop()

	for !s.IsStopped() {
		select {
		case <-timer.C:
			return errors.Errorf(waitTimeoutErr, timeout, s.Name(),
				s.GetStatus())
		case <-ticker.C:
		}
	}

	jww.TRACE.Printf("Stoppable %q stopped.", s.Name())
	return nil
}
