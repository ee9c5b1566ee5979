////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import (
	"encoding/json"
	"strconv"
	"time"
)

// PayloadKind tags the variant carried by a MessageView.
type PayloadKind uint8

const (
	// KindText is a regular message.
	KindText PayloadKind = iota

	// KindDeleted marks a message the sender deleted for everyone.
	KindDeleted

	// KindUnknown is any payload this client does not understand. It is kept
	// so newer service versions do not break decoding.
	KindUnknown
)

// String prints a human-readable form of the PayloadKind for logging and
// debugging. This function adheres to the fmt.Stringer interface.
func (k PayloadKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDeleted:
		return "deleted"
	case KindUnknown:
		return "unknown"
	default:
		return "INVALID KIND: " + strconv.Itoa(int(k))
	}
}

// Message is a text message inside a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"convoId"`
	Rev            string     `json:"rev,omitempty"`
	SenderID       string     `json:"sender"`
	Text           string     `json:"text"`
	SentAt         time.Time  `json:"sentAt"`
	Reactions      []Reaction `json:"reactions,omitempty"`

	// ReplyTo is the ID of the message this one replies to, if any.
	ReplyTo string `json:"replyTo,omitempty"`

	// Embed references a record embedded in the message, if any.
	Embed *Embed `json:"embed,omitempty"`
}

// Embed is a reference to an external record shown inside a message.
type Embed struct {
	URI string `json:"uri"`
	CID string `json:"cid,omitempty"`
}

// Copy returns a deep copy of the Message.
func (m Message) Copy() Message {
	cp := m
	if m.Reactions != nil {
		cp.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	if m.Embed != nil {
		e := *m.Embed
		cp.Embed = &e
	}
	return cp
}

// Summary returns the last-message preview for the Message.
func (m Message) Summary() *MessageSummary {
	return &MessageSummary{
		ID:       m.ID,
		SenderID: m.SenderID,
		Text:     m.Text,
		SentAt:   m.SentAt,
	}
}

// ReactionBy returns the reaction left by the reactor, if any.
func (m Message) ReactionBy(reactorID string) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.ReactorID == reactorID {
			return r, true
		}
	}
	return Reaction{}, false
}

// WithReaction returns a copy of the Message where the reactor's reaction is
// set to symbol, replacing any previous one. An empty symbol removes it.
func (m Message) WithReaction(reactorID, symbol string) Message {
	cp := m.Copy()
	reactions := make([]Reaction, 0, len(cp.Reactions)+1)
	for _, r := range cp.Reactions {
		if r.ReactorID != reactorID {
			reactions = append(reactions, r)
		}
	}
	if symbol != "" {
		reactions = append(reactions, Reaction{
			MessageID: m.ID,
			ReactorID: reactorID,
			Symbol:    symbol,
		})
	}
	cp.Reactions = reactions
	return cp
}

// DeletedMessage is the marker left where a message was deleted by its sender.
type DeletedMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"convoId"`
	Rev            string    `json:"rev,omitempty"`
	SenderID       string    `json:"sender"`
	SentAt         time.Time `json:"sentAt"`
}

// UnknownPayload keeps the raw form of a payload this client cannot decode.
type UnknownPayload struct {
	Type string          `json:"$type"`
	Raw  json.RawMessage `json:"-"`
}

// MessageView is the closed set of payloads a message listing can carry.
// Exactly one of Text, Deleted and Unknown is set, as indicated by Kind.
type MessageView struct {
	Kind    PayloadKind
	Text    *Message
	Deleted *DeletedMessage
	Unknown *UnknownPayload
}

// NewTextView wraps a Message in a MessageView.
func NewTextView(m Message) MessageView {
	return MessageView{Kind: KindText, Text: &m}
}

// NewDeletedView wraps a DeletedMessage in a MessageView.
func NewDeletedView(d DeletedMessage) MessageView {
	return MessageView{Kind: KindDeleted, Deleted: &d}
}

// NewUnknownView wraps an UnknownPayload in a MessageView.
func NewUnknownView(u UnknownPayload) MessageView {
	return MessageView{Kind: KindUnknown, Unknown: &u}
}

// MessageID returns the ID of the wrapped payload, or an empty string for
// unknown payloads.
func (v MessageView) MessageID() string {
	switch v.Kind {
	case KindText:
		return v.Text.ID
	case KindDeleted:
		return v.Deleted.ID
	default:
		return ""
	}
}

// MessagePage is one page of a cursor-paginated, newest-first message listing.
type MessagePage struct {
	Messages []MessageView

	// Cursor points at the next older page. It is empty when the oldest
	// message has been returned.
	Cursor string

	// Typing lists members currently composing a message, when the service
	// reports it.
	Typing []string
}

// Reaction is a single reactor's reaction to a message. A reactor has at most
// one reaction per message.
type Reaction struct {
	MessageID string `json:"messageId"`
	ReactorID string `json:"reactor"`
	Symbol    string `json:"value"`
}
