////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package messages keeps a message cache per conversation, polls the
// conversation currently on screen for new messages and applies sends and
// deletes optimistically.
package messages

import (
	"context"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/stoppable"
)

// Conversations is the conversation context the Synchronizer needs.
type Conversations interface {
	// SelfID returns the account the caches belong to.
	SelfID() string

	// ApplyLastMessage reports a confirmed send so the conversation's
	// last-message summary follows it.
	ApplyLastMessage(convoID string, msg api.Message)
}

// UpdateCallback is called with a snapshot of a conversation's entries every
// time its cache changes. A nil slice means the cache was discarded. It is
// called synchronously and must not call back into mutating methods.
type UpdateCallback func(convoID string, entries []Entry)

// Synchronizer owns every per-conversation message cache.
type Synchronizer struct {
	client  api.MessageAPI
	convos  Conversations
	params  Params
	events  event.Reporter
	errSlot *event.ErrorSlot

	caches    map[string]*conversationCache
	pollers   map[string]*stoppable.Single
	displayed string

	updateCb UpdateCallback
	mux      sync.Mutex
}

// NewSynchronizer returns a Synchronizer with no cached conversations.
func NewSynchronizer(client api.MessageAPI, convos Conversations,
	reporter event.Reporter, params Params) *Synchronizer {
	if reporter == nil {
		reporter = event.Discard{}
	}
	return &Synchronizer{
		client:  client,
		convos:  convos,
		params:  params,
		events:  reporter,
		errSlot: event.NewErrorSlot(event.CategorySync),
		caches:  make(map[string]*conversationCache),
		pollers: make(map[string]*stoppable.Single),
	}
}

// Errors returns the message sync error slot.
func (s *Synchronizer) Errors() *event.ErrorSlot {
	return s.errSlot
}

// RegisterUpdateCallback sets the function called when a cache changes.
// Passing nil removes it.
func (s *Synchronizer) RegisterUpdateCallback(cb UpdateCallback) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.updateCb = cb
}

// LoadMessages fetches the newest page when refresh is set or nothing is
// cached yet, and the next older page otherwise. Results are merged by
// message ID; pending sends are kept. On failure the cache is untouched and
// the error is set in the error slot.
func (s *Synchronizer) LoadMessages(ctx context.Context, convoID string,
	refresh bool) error {
	if convoID == "" {
		return ErrMissingIdentifier
	}

	s.mux.Lock()
	c := s.cacheLocked(convoID, true)
	if !c.loaded {
		refresh = true
	}
	if !refresh && c.cursor == "" {
		s.mux.Unlock()
		jww.TRACE.Printf("[Sync] No older messages in %s", convoID)
		return nil
	}
	cursor, generation := "", c.generation
	if !refresh {
		cursor = c.cursor
	}
	c.fetchSeq++
	seq := c.fetchSeq
	s.mux.Unlock()

	page, err := s.client.ListMessages(ctx, convoID, cursor, s.params.PageSize)
	if err != nil {
		if api.IsStaleCursor(err) && !refresh {
			jww.INFO.Printf("[Sync] Stale cursor in %s, refreshing", convoID)
			return s.LoadMessages(ctx, convoID, true)
		}
		return s.fail(err, "load messages of %s", convoID)
	}

	s.mux.Lock()
	c = s.cacheLocked(convoID, false)
	if c == nil {
		s.mux.Unlock()
		jww.DEBUG.Printf("[Sync] %s discarded during load", convoID)
		return nil
	}
	if !s.applyPageLocked(c, convoID, page, refresh, seq, cursor, generation) {
		s.mux.Unlock()
		return nil
	}
	s.mux.Unlock()

	jww.DEBUG.Printf("[Sync] Loaded %d messages in %s (refresh: %t)",
		len(page.Messages), convoID, refresh)
	s.notify(convoID)
	return nil
}

// applyPageLocked merges a page unless a newer fetch already moved the cache.
// Returns false if the page was rejected.
func (s *Synchronizer) applyPageLocked(c *conversationCache, convoID string,
	page api.MessagePage, refresh bool, seq uint64, cursor string,
	generation uint64) bool {
	if refresh {
		if seq <= c.refreshSeq {
			jww.DEBUG.Printf("[Sync] Dropping refresh of %s superseded by a "+
				"newer one", convoID)
			return false
		}
		c.refreshSeq = seq
		c.generation++
		c.replace(convoID, page.Messages)
		c.cursor = page.Cursor
		c.loaded = true
		c.suspended = false
	} else {
		if generation != c.generation || cursor != c.cursor {
			jww.DEBUG.Printf("[Sync] Dropping page of %s at stale cursor %q",
				convoID, cursor)
			return false
		}
		c.merge(convoID, page.Messages)
		c.cursor = page.Cursor
	}
	c.setTyping(page.Typing, s.convos.SelfID(),
		netTime.Now().Add(s.params.TypingTTL))
	return true
}

// Messages returns a snapshot of a conversation's entries, oldest first.
func (s *Synchronizer) Messages(convoID string) []Entry {
	s.mux.Lock()
	defer s.mux.Unlock()
	c := s.cacheLocked(convoID, false)
	if c == nil {
		return nil
	}
	return c.snapshot()
}

// Message returns a confirmed, not tombstoned message from the cache.
func (s *Synchronizer) Message(convoID, messageID string) (api.Message, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	c := s.cacheLocked(convoID, false)
	if c == nil {
		return api.Message{}, false
	}
	i := c.find(messageID)
	if i < 0 || c.entries[i].Tombstoned {
		return api.Message{}, false
	}
	return c.entries[i].Message.Copy(), true
}

// UpdateMessage replaces the cached copy of a confirmed message. Returns false
// if the message is not cached.
func (s *Synchronizer) UpdateMessage(convoID string, msg api.Message) bool {
	s.mux.Lock()
	c := s.cacheLocked(convoID, false)
	if c == nil || c.find(msg.ID) < 0 {
		s.mux.Unlock()
		return false
	}
	c.upsert(msg)
	c.sort()
	s.mux.Unlock()
	s.notify(convoID)
	return true
}

// Typing returns the members currently typing in a conversation.
func (s *Synchronizer) Typing(convoID string) []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	c := s.cacheLocked(convoID, false)
	if c == nil {
		return nil
	}
	return c.typingAt(netTime.Now())
}

// cacheLocked returns the cache of a conversation, creating it if asked.
func (s *Synchronizer) cacheLocked(convoID string, create bool) *conversationCache {
	c, exists := s.caches[convoID]
	if !exists && create {
		c = newConversationCache()
		s.caches[convoID] = c
	}
	return c
}

// fail records a non-cancellation error and returns it. Cancellation returns
// nil.
func (s *Synchronizer) fail(err error, format string, args ...interface{}) error {
	if api.IsCanceled(err) {
		jww.DEBUG.Printf("[Sync] Canceled: "+format, args...)
		return nil
	}
	jww.WARN.Printf("[Sync] Failed to "+format+": %+v", append(args, err)...)
	s.errSlot.Set(err)
	return err
}

func (s *Synchronizer) notify(convoID string) {
	s.mux.Lock()
	cb := s.updateCb
	if cb == nil {
		s.mux.Unlock()
		return
	}
	var entries []Entry
	if c := s.cacheLocked(convoID, false); c != nil {
		entries = c.snapshot()
	}
	s.mux.Unlock()
	cb(convoID, entries)
}
