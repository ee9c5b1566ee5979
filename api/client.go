////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package api describes the remote messaging service as seen by the sync
// engine: its data model, the closed set of message payload variants, the
// error taxonomy and the calls each component depends on. Transport
// implementations live in sub-packages.
package api

import "context"

// MaxProfileBatch is the largest number of actors the service resolves in one
// GetProfiles call.
const MaxProfileBatch = 25

// ConversationAPI is the part of the service the conversation registry uses.
type ConversationAPI interface {
	// ListConversations returns one page of conversations in the given lane.
	// An empty cursor starts from the most recently active conversation.
	ListConversations(ctx context.Context, status ConversationStatus,
		cursor string, limit int) (ConversationPage, error)

	MuteConversation(ctx context.Context, convoID string) error
	UnmuteConversation(ctx context.Context, convoID string) error
	LeaveConversation(ctx context.Context, convoID string) error
	AcceptConversation(ctx context.Context, convoID string) error
	DeclineRequest(ctx context.Context, convoID string) error

	// UpdateRead marks the conversation read up to and including messageID.
	// An empty messageID marks everything read.
	UpdateRead(ctx context.Context, convoID, messageID string) error

	// UpdateAllRead marks every accepted conversation read.
	UpdateAllRead(ctx context.Context) error
}

// ModerationAPI holds the calls reserved to conversation admins.
type ModerationAPI interface {
	// ListConversationAdmins returns the current admin members.
	ListConversationAdmins(ctx context.Context, convoID string) ([]string, error)

	GetActorMetadata(ctx context.Context, actor string) (ActorMetadata, error)

	// GetMessageContext returns up to before/after messages around messageID,
	// oldest first.
	GetMessageContext(ctx context.Context, convoID, messageID string,
		before, after int) ([]MessageView, error)

	UpdateActorAccess(ctx context.Context, actor string, allowAccess bool,
		ref string) error
}

// MessageAPI is the part of the service the message synchronizer uses.
type MessageAPI interface {
	// ListMessages returns one page of messages, newest first. An empty cursor
	// starts from the newest message.
	ListMessages(ctx context.Context, convoID, cursor string,
		limit int) (MessagePage, error)

	// ListMessagesSince returns messages newer than afterMessageID, newest
	// first. Returns ErrStaleCursor if the service no longer recognises the
	// position.
	ListMessagesSince(ctx context.Context, convoID, afterMessageID string,
		limit int) (MessagePage, error)

	// SendMessage posts a message and returns it as stored by the service,
	// with its service-assigned ID.
	SendMessage(ctx context.Context, convoID, text string) (Message, error)

	// DeleteMessageForSelf hides a message for this account only.
	DeleteMessageForSelf(ctx context.Context, convoID, messageID string) error
}

// ReactionAPI is the part of the service the reaction coordinator uses. Both
// calls return the message with its reactions as stored after the change.
type ReactionAPI interface {
	// AddReaction sets the caller's reaction, replacing any previous one.
	AddReaction(ctx context.Context, convoID, messageID,
		symbol string) (Message, error)

	RemoveReaction(ctx context.Context, convoID, messageID,
		symbol string) (Message, error)
}

// ProfileAPI resolves display profiles. At most MaxProfileBatch actors may be
// passed per call; unknown actors are omitted from the result.
type ProfileAPI interface {
	GetProfiles(ctx context.Context, actors []string) ([]Profile, error)
}

// DeviceAPI covers device registration, key package supply and opt-in for the
// encrypted messaging mode.
type DeviceAPI interface {
	RegisterDevice(ctx context.Context, reg DeviceRegistration) (Device, error)

	PublishKeyPackages(ctx context.Context, deviceID string,
		packages []PublishedKeyPackage) (PublishResult, error)

	// CountKeyPackages returns how many unused packages the service holds for
	// the device.
	CountKeyPackages(ctx context.Context, deviceID string) (int, error)

	OptIn(ctx context.Context, deviceID string) (OptInStatus, error)
	OptOut(ctx context.Context) error
	GetOptInStatus(ctx context.Context) (OptInStatus, error)
}

// Client is the full service surface.
type Client interface {
	ConversationAPI
	ModerationAPI
	MessageAPI
	ReactionAPI
	ProfileAPI
	DeviceAPI
}
