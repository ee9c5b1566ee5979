////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package reactions

import (
	"github.com/pkg/errors"

	"gitlab.com/elixxir/convsync/emoji"
)

var (
	// ErrInvalidSymbol is returned for reactions that are not a single emoji.
	ErrInvalidSymbol = errors.WithMessage(emoji.InvalidReaction,
		"invalid reaction symbol")

	// ErrMissingIdentifier is returned when a conversation or message
	// identifier is missing.
	ErrMissingIdentifier = errors.New("an identifier is required")

	// ErrUnknownMessage is returned when the message is not cached.
	ErrUnknownMessage = errors.New("message is not cached")
)
