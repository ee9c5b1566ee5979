////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messages

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyMessage is returned for message text that is empty or only
	// whitespace.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrMissingIdentifier is returned when a conversation or message
	// identifier is missing.
	ErrMissingIdentifier = errors.New("an identifier is required")

	// ErrUnknownMessage is returned when the message is not in the local
	// cache.
	ErrUnknownMessage = errors.New("message is not cached")
)

// ValidateText returns ErrEmptyMessage if the text has no visible content.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return nil
}
