////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import "github.com/pkg/errors"

var (
	// ErrMissingIdentifier is returned when an operation is called without a
	// conversation identifier. No request is made.
	ErrMissingIdentifier = errors.New("a conversation identifier is required")

	// ErrUnknownConversation is returned when the conversation is not in the
	// local cache.
	ErrUnknownConversation = errors.New("conversation is not cached")

	// ErrNotAdmin is returned by moderation calls when the account is not an
	// admin of the conversation.
	ErrNotAdmin = errors.New("moderation requires conversation admin rights")
)
