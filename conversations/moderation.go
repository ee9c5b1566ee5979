////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/profiles"
)

// IsAdmin asks the service whether the account currently administers the
// conversation.
func (r *Registry) IsAdmin(ctx context.Context, convoID string) (bool, error) {
	if convoID == "" {
		return false, ErrMissingIdentifier
	}
	admins, err := r.client.ListConversationAdmins(ctx, convoID)
	if err != nil {
		return false, errors.WithMessagef(err,
			"failed to list admins of %s", convoID)
	}
	self := profiles.Canonicalize(r.selfID)
	for _, a := range admins {
		if profiles.Canonicalize(a) == self {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) requireAdmin(ctx context.Context, convoID string) error {
	isAdmin, err := r.IsAdmin(ctx, convoID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return errors.Wrapf(ErrNotAdmin, "conversation %s", convoID)
	}
	return nil
}

// ActorMetadata returns usage metadata of an actor, for admins of convoID.
func (r *Registry) ActorMetadata(ctx context.Context, convoID,
	actor string) (api.ActorMetadata, error) {
	if err := r.requireAdmin(ctx, convoID); err != nil {
		return api.ActorMetadata{}, err
	}
	return r.client.GetActorMetadata(ctx, actor)
}

// MessageContext returns the messages around messageID, for admins of
// convoID.
func (r *Registry) MessageContext(ctx context.Context, convoID,
	messageID string, before, after int) ([]api.MessageView, error) {
	if err := r.requireAdmin(ctx, convoID); err != nil {
		return nil, err
	}
	return r.client.GetMessageContext(ctx, convoID, messageID, before, after)
}

// UpdateActorAccess allows or blocks an actor, for admins of convoID. ref
// identifies the report or message the decision refers to.
func (r *Registry) UpdateActorAccess(ctx context.Context, convoID,
	actor string, allow bool, ref string) error {
	if actor == "" {
		return errors.New("an actor identifier is required")
	}
	if err := r.requireAdmin(ctx, convoID); err != nil {
		return err
	}
	return r.client.UpdateActorAccess(ctx, actor, allow, ref)
}
