////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import "strconv"

// State is the opt-in state of the encrypted messaging mode.
type State uint8

const (
	// OptedOut is the resting state; the full sequence is required to leave
	// it.
	OptedOut State = iota

	// Initializing means a device is registered but the service does not yet
	// hold enough key packages.
	Initializing

	// KeyMaterialReady means opt-in is allowed.
	KeyMaterialReady

	// OptedIn means the service confirmed the opt-in and the flag is
	// persisted.
	OptedIn
)

// String returns a human-readable name for the State. Used for debugging and
// logging.
func (s State) String() string {
	switch s {
	case OptedOut:
		return "OptedOut"
	case Initializing:
		return "Initializing"
	case KeyMaterialReady:
		return "KeyMaterialReady"
	case OptedIn:
		return "OptedIn"
	default:
		return "INVALID STATE " + strconv.Itoa(int(s))
	}
}

// hasDevice reports whether a registered device exists in this state.
func (s State) hasDevice() bool {
	return s != OptedOut
}
