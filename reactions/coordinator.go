////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package reactions toggles the account's reaction on cached messages. Calls
// for the same message run one at a time; a new call cancels the one before
// it.
package reactions

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/emoji"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/metrics"
)

// Messages is the message cache the Coordinator reads and updates.
type Messages interface {
	// Message returns a confirmed, visible message.
	Message(convoID, messageID string) (api.Message, bool)

	// UpdateMessage replaces the cached copy of a message.
	UpdateMessage(convoID string, msg api.Message) bool
}

// toggle is a reaction call in progress.
type toggle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator applies reaction toggles to the message cache and confirms them
// with the service.
type Coordinator struct {
	client   api.ReactionAPI
	messages Messages
	selfID   string
	events   event.Reporter
	errSlot  *event.ErrorSlot

	inProgress map[string]*toggle
	mux        sync.Mutex
}

// NewCoordinator returns a Coordinator reacting as selfID. Failures are set in
// errSlot, which is normally the message sync slot.
func NewCoordinator(client api.ReactionAPI, messages Messages, selfID string,
	reporter event.Reporter, errSlot *event.ErrorSlot) *Coordinator {
	if reporter == nil {
		reporter = event.Discard{}
	}
	if errSlot == nil {
		errSlot = event.NewErrorSlot(event.CategoryReactions)
	}
	return &Coordinator{
		client:     client,
		messages:   messages,
		selfID:     selfID,
		events:     reporter,
		errSlot:    errSlot,
		inProgress: make(map[string]*toggle),
	}
}

// ToggleReaction removes the account's reaction to the message if it is
// symbol, and otherwise sets it to symbol. The change shows in the cache
// right away and is reverted if the service call fails. A call still running
// for the same message is canceled and waited for first. Cancellation returns
// nil.
func (c *Coordinator) ToggleReaction(ctx context.Context, convoID, messageID,
	symbol string) error {
	if convoID == "" || messageID == "" {
		return ErrMissingIdentifier
	}
	if err := emoji.ValidateReaction(symbol); err != nil {
		return errors.WithMessagef(ErrInvalidSymbol, "%q", symbol)
	}

	ctx, cancel := context.WithCancel(ctx)
	mine := &toggle{cancel: cancel, done: make(chan struct{})}
	key := convoID + "/" + messageID

	c.mux.Lock()
	prev := c.inProgress[key]
	c.inProgress[key] = mine
	c.mux.Unlock()

	defer func() {
		c.mux.Lock()
		if c.inProgress[key] == mine {
			delete(c.inProgress, key)
		}
		c.mux.Unlock()
		cancel()
		close(mine.done)
	}()

	if prev != nil {
		jww.DEBUG.Printf("[Reactions] Superseding reaction call on %s", key)
		prev.cancel()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}

	msg, exists := c.messages.Message(convoID, messageID)
	if !exists {
		return errors.Wrapf(ErrUnknownMessage, "%s", key)
	}

	current, hasReaction := msg.ReactionBy(c.selfID)
	remove := hasReaction && current.Symbol == symbol

	optimistic := msg.WithReaction(c.selfID, symbol)
	if remove {
		optimistic = msg.WithReaction(c.selfID, "")
	}
	c.messages.UpdateMessage(convoID, optimistic)

	var confirmed api.Message
	var err error
	if remove {
		confirmed, err = c.client.RemoveReaction(ctx, convoID, messageID, symbol)
	} else {
		confirmed, err = c.client.AddReaction(ctx, convoID, messageID, symbol)
	}

	if err != nil {
		c.messages.UpdateMessage(convoID, msg)
		metrics.Rollbacks.WithLabelValues("reaction").Inc()
		if api.IsCanceled(err) || ctx.Err() != nil {
			jww.DEBUG.Printf("[Reactions] Reaction call on %s canceled", key)
			return nil
		}
		jww.WARN.Printf("[Reactions] Failed to toggle %s on %s: %+v",
			symbol, key, err)
		c.errSlot.Set(err)
		c.events.Report(event.Warning, event.CategoryReactions, "Rollback", key)
		return err
	}

	c.messages.UpdateMessage(convoID, confirmed)
	jww.DEBUG.Printf("[Reactions] Toggled %s on %s (removed: %t)", symbol,
		key, remove)
	return nil
}
