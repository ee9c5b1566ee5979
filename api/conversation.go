////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import (
	"strconv"
	"time"
)

// ConversationStatus is the lane a conversation lives in.
type ConversationStatus uint8

const (
	// StatusAccepted conversations are shown in the main list.
	StatusAccepted ConversationStatus = iota

	// StatusRequest conversations are message requests that have not been
	// accepted yet.
	StatusRequest
)

// String prints a human-readable form of the ConversationStatus for logging
// and debugging. This function adheres to the fmt.Stringer interface.
func (s ConversationStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRequest:
		return "pending-request"
	default:
		return "INVALID STATUS: " + strconv.Itoa(int(s))
	}
}

// Conversation is a thread between two or more members as reported by the
// service.
type Conversation struct {
	ID string `json:"id"`

	// Rev is an opaque token that only moves forward for a given ID.
	Rev string `json:"rev"`

	Members     []string           `json:"members"`
	LastMessage *MessageSummary    `json:"lastMessage,omitempty"`
	UnreadCount int                `json:"unreadCount"`
	Muted       bool               `json:"muted"`
	Status      ConversationStatus `json:"status"`
}

// MessageSummary is the last-message preview attached to a Conversation.
type MessageSummary struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
	Deleted  bool      `json:"deleted,omitempty"`
}

// Copy returns a deep copy of the Conversation so callers can hand it out
// without exposing cache internals.
func (c Conversation) Copy() Conversation {
	cp := c
	if c.Members != nil {
		cp.Members = append([]string(nil), c.Members...)
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return cp
}

// LastActivity returns the time of the last message, or the zero time.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.SentAt
}

// CompareRevisions orders two revision tokens. Tokens are opaque but sortable:
// a longer token is newer and tokens of equal length compare lexically.
// Returns -1 if a is older than b, 0 if equal and 1 if newer. An empty token
// is older than any other.
func CompareRevisions(a, b string) int {
	switch {
	case a == b:
		return 0
	case len(a) != len(b):
		if len(a) < len(b) {
			return -1
		}
		return 1
	case a < b:
		return -1
	default:
		return 1
	}
}

// ConversationPage is one page of a cursor-paginated conversation listing.
type ConversationPage struct {
	Conversations []Conversation `json:"convos"`

	// Cursor is empty when there are no more pages.
	Cursor string `json:"cursor,omitempty"`
}
