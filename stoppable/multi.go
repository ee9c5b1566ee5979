////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const closeMultiErr = "multi stoppable %q failed to close %d/%d stoppables: %s"

// Multi groups several stoppables so they can be closed together.
type Multi struct {
	name       string
	stoppables []Stoppable
	mux        sync.RWMutex
	once       sync.Once
}

// NewMulti returns a new empty Multi.
func NewMulti(name string) *Multi {
	return &Multi{name: name}
}

// Add adds the given Stoppable to the list of stoppables.
func (m *Multi) Add(stoppable Stoppable) {
	m.mux.Lock()
	m.stoppables = append(m.stoppables, stoppable)
	m.mux.Unlock()
}

// Name returns the name of the Multi and all of its children.
func (m *Multi) Name() string {
	m.mux.RLock()
	defer m.mux.RUnlock()

	names := make([]string, len(m.stoppables))
	for i, s := range m.stoppables {
		names[i] = s.Name()
	}

	return m.name + ": {" + strings.Join(names, ", ") + "}"
}

// GetStatus returns Stopped once every child has stopped, Stopping while any
// child is still winding down, and Running otherwise.
func (m *Multi) GetStatus() Status {
	m.mux.RLock()
	defer m.mux.RUnlock()

	stopped := 0
	for _, s := range m.stoppables {
		switch s.GetStatus() {
		case Stopping:
			return Stopping
		case Stopped:
			stopped++
		}
	}

	if len(m.stoppables) > 0 && stopped == len(m.stoppables) {
		return Stopped
	}

	return Running
}

// IsRunning returns true if the Multi is running.
func (m *Multi) IsRunning() bool { return m.GetStatus() == Running }

// IsStopping returns true if the Multi is stopping.
func (m *Multi) IsStopping() bool { return m.GetStatus() == Stopping }

// IsStopped returns true if every child is stopped.
func (m *Multi) IsStopped() bool { return m.GetStatus() == Stopped }

// Close closes all child stoppables. Errors are aggregated.
func (m *Multi) Close() error {
	var err error

	m.once.Do(func() {
		m.mux.RLock()
		defer m.mux.RUnlock()

		var failed []string
		for _, s := range m.stoppables {
			if closeErr := s.Close(); closeErr != nil {
				failed = append(failed, closeErr.Error())
			}
		}

		if len(failed) > 0 {
			err = errors.Errorf(closeMultiErr, m.name, len(failed),
				len(m.stoppables), strings.Join(failed, "; "))
		}
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}

	return err
}
