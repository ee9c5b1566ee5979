////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const toStoppingErr = "failed to set the status of single stoppable %q to " +
	"stopping when status is %s instead of %s"

// Single allows stopping a single goroutine using a quit channel. The context
// returned by Context is canceled on Close so that any request in flight on
// behalf of the goroutine is abandoned as well.
type Single struct {
	name   string
	quit   chan struct{}
	status Status
	once   sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSingle returns a new Single in the Running state.
func NewSingle(name string) *Single {
	ctx, cancel := context.WithCancel(context.Background())
	return &Single{
		name:   name,
		quit:   make(chan struct{}),
		status: Running,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Name returns the name of the Single stoppable.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the status of the Single stoppable.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32((*uint32)(&s.status)))
}

// IsRunning returns true if the Single is running.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopping returns true if the Single is in the process of stopping.
func (s *Single) IsStopping() bool {
	return s.GetStatus() == Stopping
}

// IsStopped returns true if the Single is stopped.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// Context returns the context bound to the lifetime of the Single.
func (s *Single) Context() context.Context {
	return s.ctx
}

// Quit returns a receive-only channel that is closed when Close is called.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

func (s *Single) toStopping() error {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Running), uint32(Stopping)) {
		return errors.Errorf(toStoppingErr, s.Name(), s.GetStatus(), Running)
	}

	jww.TRACE.Printf("Switched status of single stoppable %q from %s to %s.",
		s.Name(), Running, Stopping)

	return nil
}

// ToStopped is called by the goroutine owning the Single as it exits. Calling
// it outside the Stopping state is a programming error.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf("Failed to set the status of single stoppable %q to "+
			"stopped when status is %s instead of %s.",
			s.Name(), s.GetStatus(), Stopping)
	}

	jww.TRACE.Printf("Switched status of single stoppable %q from %s to %s.",
		s.Name(), Stopping, Stopped)
}

// Close signals the goroutine to stop by canceling the context and closing
// the quit channel. Only the first call has any effect.
func (s *Single) Close() error {
	var err error

	s.once.Do(func() {
		// Attempt to set status to stopping or return an error if unable
		err = s.toStopping()
		if err != nil {
			return
		}

		s.cancel()
		close(s.quit)
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}

	return err
}
