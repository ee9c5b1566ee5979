////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Cleanup wraps a Stoppable and runs a clean function once the wrapped
// Stoppable has been closed. Used where stopping a goroutine must also
// release the state it maintained.
type Cleanup struct {
	stop  Stoppable
	clean func() error
	once  sync.Once
}

// NewCleanup creates a new Cleanup from the passed Stoppable and function.
func NewCleanup(stop Stoppable, clean func() error) *Cleanup {
	return &Cleanup{
		stop:  stop,
		clean: clean,
	}
}

// Name returns the name of the wrapped Stoppable.
func (c *Cleanup) Name() string {
	return c.stop.Name() + " with cleanup"
}

// GetStatus returns the status of the wrapped Stoppable.
func (c *Cleanup) GetStatus() Status { return c.stop.GetStatus() }

// IsRunning returns true if the wrapped Stoppable is running.
func (c *Cleanup) IsRunning() bool { return c.stop.IsRunning() }

// IsStopping returns true if the wrapped Stoppable is stopping.
func (c *Cleanup) IsStopping() bool { return c.stop.IsStopping() }

// IsStopped returns true if the wrapped Stoppable is stopped.
func (c *Cleanup) IsStopped() bool { return c.stop.IsStopped() }

// Close closes the wrapped Stoppable and then runs the clean function. The
// clean function does not run if the close fails.
func (c *Cleanup) Close() error {
	var err error

	c.once.Do(func() {
		if err = c.stop.Close(); err != nil {
			err = errors.WithMessagef(err, "cleanup for %s not executed",
				c.stop.Name())
			return
		}

		if err = c.clean(); err != nil {
			err = errors.WithMessagef(err, "cleanup for %s failed",
				c.stop.Name())
		}
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}

	return err
}
