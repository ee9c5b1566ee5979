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
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/metrics"
)

// Mutation names used in logs, events and metrics.
const (
	opMute    = "mute"
	opUnmute  = "unmute"
	opLeave   = "leave"
	opAccept  = "accept"
	opDecline = "decline"
)

// Mute silences a conversation.
func (r *Registry) Mute(ctx context.Context, convoID string) error {
	return r.mutate(ctx, opMute, convoID,
		func(c *api.Conversation) bool { c.Muted = true; return true },
		r.client.MuteConversation)
}

// Unmute reverses Mute.
func (r *Registry) Unmute(ctx context.Context, convoID string) error {
	return r.mutate(ctx, opUnmute, convoID,
		func(c *api.Conversation) bool { c.Muted = false; return true },
		r.client.UnmuteConversation)
}

// Leave removes the account from a conversation and drops it from the cache.
func (r *Registry) Leave(ctx context.Context, convoID string) error {
	return r.mutate(ctx, opLeave, convoID,
		func(*api.Conversation) bool { return false },
		r.client.LeaveConversation)
}

// AcceptConversation moves a message request into the accepted lane.
func (r *Registry) AcceptConversation(ctx context.Context, convoID string) error {
	return r.mutate(ctx, opAccept, convoID,
		func(c *api.Conversation) bool {
			c.Status = api.StatusAccepted
			return true
		},
		r.client.AcceptConversation)
}

// DeclineRequest rejects a message request and drops it from the cache.
func (r *Registry) DeclineRequest(ctx context.Context, convoID string) error {
	return r.mutate(ctx, opDecline, convoID,
		func(*api.Conversation) bool { return false },
		r.client.DeclineRequest)
}

// mutate applies a change to the cached conversation, then confirms it with
// the service. apply returns false to remove the conversation. On failure the
// cached copy from before the change is restored. Mutations of one
// conversation run one at a time, so a rollback never undoes a change
// confirmed by a later mutation.
func (r *Registry) mutate(ctx context.Context, op, convoID string,
	apply func(c *api.Conversation) bool,
	call func(ctx context.Context, convoID string) error) error {

	if convoID == "" {
		r.errSlot.Set(ErrMissingIdentifier)
		return ErrMissingIdentifier
	}

	turn := r.beginMutation(convoID)
	defer r.endMutation(convoID)
	select {
	case turn <- struct{}{}:
	default:
		select {
		case turn <- struct{}{}:
		case <-ctx.Done():
			jww.DEBUG.Printf("[Registry] %s %s canceled while queued",
				op, convoID)
			return nil
		}
	}
	defer func() { <-turn }()

	r.mux.Lock()
	snapshot, exists := r.convos[convoID]
	if !exists {
		r.mux.Unlock()
		err := errors.Wrapf(ErrUnknownConversation, "cannot %s %s", op, convoID)
		r.errSlot.Set(err)
		return err
	}
	snapshot = snapshot.Copy()
	updated := snapshot.Copy()
	if apply(&updated) {
		r.convos[convoID] = updated
	} else {
		delete(r.convos, convoID)
	}
	r.mux.Unlock()
	r.notify()

	err := call(ctx, convoID)
	if err == nil {
		jww.DEBUG.Printf("[Registry] %s %s confirmed", op, convoID)
		return nil
	}

	r.mux.Lock()
	r.convos[convoID] = snapshot
	r.mux.Unlock()

	r.notify()
	metrics.Rollbacks.WithLabelValues(op).Inc()
	if api.IsCanceled(err) {
		jww.DEBUG.Printf("[Registry] %s %s canceled, reverted", op, convoID)
		return nil
	}
	r.events.Report(event.Warning, event.CategoryRegistry, "Rollback",
		op+" "+convoID)
	return r.fail(err, "%s %s", op, convoID)
}

// beginMutation marks a mutation of the conversation as pending and returns
// the channel that grants its turn.
func (r *Registry) beginMutation(convoID string) chan struct{} {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.pending[convoID]++
	turn, exists := r.turns[convoID]
	if !exists {
		turn = make(chan struct{}, 1)
		r.turns[convoID] = turn
	}
	return turn
}

func (r *Registry) endMutation(convoID string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.pending[convoID]--; r.pending[convoID] <= 0 {
		delete(r.pending, convoID)
		delete(r.turns, convoID)
	}
}

// MarkConversationAsRead zeroes the unread count locally, then confirms with
// the service. The count is not restored on failure.
func (r *Registry) MarkConversationAsRead(ctx context.Context,
	convoID string) error {
	if convoID == "" {
		r.errSlot.Set(ErrMissingIdentifier)
		return ErrMissingIdentifier
	}

	r.mux.Lock()
	c, exists := r.convos[convoID]
	lastID := ""
	if exists {
		c.UnreadCount = 0
		r.convos[convoID] = c
		if c.LastMessage != nil {
			lastID = c.LastMessage.ID
		}
	}
	r.mux.Unlock()
	if exists {
		r.notify()
	}

	if err := r.client.UpdateRead(ctx, convoID, lastID); err != nil {
		return r.fail(err, "mark %s read", convoID)
	}
	return nil
}

// MarkAllConversationsAsRead zeroes every accepted unread count locally, then
// confirms with the service. Counts are not restored on failure.
func (r *Registry) MarkAllConversationsAsRead(ctx context.Context) error {
	r.mux.Lock()
	for id, c := range r.convos {
		if c.Status == api.StatusAccepted && c.UnreadCount != 0 {
			c.UnreadCount = 0
			r.convos[id] = c
		}
	}
	r.mux.Unlock()
	r.notify()

	if err := r.client.UpdateAllRead(ctx); err != nil {
		return r.fail(err, "mark all conversations read")
	}
	return nil
}
