////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrStaleCursor is returned when the service rejects a fetch position.
	// Callers recover with a full refresh.
	ErrStaleCursor = errors.New("the fetch position is no longer valid")

	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("the requested record was not found")

	// ErrRejected is returned when the service refuses a mutation.
	ErrRejected = errors.New("the service rejected the request")

	// ErrUnauthorized is returned when the session is not allowed to make
	// the call.
	ErrUnauthorized = errors.New("the session is not authorized")
)

// IsStaleCursor returns true if the error, or any error it wraps, is
// ErrStaleCursor.
func IsStaleCursor(err error) bool {
	return errors.Is(err, ErrStaleCursor)
}

// IsCanceled returns true if the error is the result of the caller canceling
// the request. Cancellation is never a user-visible failure. Deadlines are
// not cancellation; they are treated as transport failures.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
