////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package conversations keeps the local view of the account's conversations:
// the accepted list, the message-request lane, unread counts and mute state.
// It is kept current by explicit loads and a list poll, and applies local
// changes optimistically before confirming them with the service.
package conversations

import (
	"context"
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/profiles"
	"gitlab.com/elixxir/convsync/stoppable"
)

// Client is the part of the service the Registry calls.
type Client interface {
	api.ConversationAPI
	api.ModerationAPI
	api.ProfileAPI
}

// UpdateCallback is called with fresh snapshots of both lanes every time the
// cache changes. It is called synchronously; it must not call back into the
// Registry's mutating methods.
type UpdateCallback func(accepted, requests []api.Conversation)

// lane tracks the paging state of one conversation status.
type lane struct {
	cursor string
	loaded bool
}

// Registry is the single owner of the conversation cache.
type Registry struct {
	client   Client
	profiles *profiles.Cache
	selfID   string
	params   Params
	events   event.Reporter
	errSlot  *event.ErrorSlot

	convos map[string]api.Conversation
	lanes  map[api.ConversationStatus]*lane

	// pending counts in-flight optimistic mutations per conversation. Merges
	// from the service are not applied to a conversation while it has any.
	pending map[string]int
	// turns serializes the mutations of each conversation. An entry lives
	// while the conversation has pending mutations.
	turns map[string]chan struct{}

	pollSuspended bool
	poller        *stoppable.Single

	updateCb UpdateCallback
	mux      sync.Mutex
}

// NewRegistry returns an empty Registry for the account selfID. The profile
// cache is optional.
func NewRegistry(client Client, profileCache *profiles.Cache, selfID string,
	reporter event.Reporter, params Params) *Registry {
	if reporter == nil {
		reporter = event.Discard{}
	}
	return &Registry{
		client:   client,
		profiles: profileCache,
		selfID:   selfID,
		params:   params,
		events:   reporter,
		errSlot:  event.NewErrorSlot(event.CategoryRegistry),
		convos:   make(map[string]api.Conversation),
		lanes: map[api.ConversationStatus]*lane{
			api.StatusAccepted: {},
			api.StatusRequest:  {},
		},
		pending: make(map[string]int),
		turns:   make(map[string]chan struct{}),
	}
}

// SelfID returns the account the registry belongs to.
func (r *Registry) SelfID() string {
	return r.selfID
}

// Errors returns the registry's user-visible error slot.
func (r *Registry) Errors() *event.ErrorSlot {
	return r.errSlot
}

// RegisterUpdateCallback sets the function called when the cache changes.
// Passing nil removes it.
func (r *Registry) RegisterUpdateCallback(cb UpdateCallback) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.updateCb = cb
}

////////////////////////////////////////////////////////////////////////////////
// Loading                                                                    //
////////////////////////////////////////////////////////////////////////////////

// LoadConversations loads the accepted lane. With refresh set, cached pages
// are replaced by a fetch from the start. Otherwise the next page is fetched
// and merged, or the first page if nothing was loaded yet. On failure the cache
// is left untouched and the error is set in the error slot.
func (r *Registry) LoadConversations(ctx context.Context, refresh bool) error {
	return r.load(ctx, api.StatusAccepted, refresh)
}

// LoadRequests is LoadConversations for the message-request lane.
func (r *Registry) LoadRequests(ctx context.Context, refresh bool) error {
	return r.load(ctx, api.StatusRequest, refresh)
}

// HasMore returns true if the lane has further pages to load.
func (r *Registry) HasMore(status api.ConversationStatus) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	l := r.lanes[status]
	return !l.loaded || l.cursor != ""
}

func (r *Registry) load(ctx context.Context, status api.ConversationStatus,
	refresh bool) error {
	r.mux.Lock()
	l := r.lanes[status]
	cursor := ""
	if !refresh {
		if l.loaded && l.cursor == "" {
			r.mux.Unlock()
			jww.TRACE.Printf("[Registry] No more %s pages", status)
			return nil
		}
		cursor = l.cursor
	}
	r.mux.Unlock()

	page, err := r.client.ListConversations(ctx, status, cursor,
		r.params.PageSize)
	if err != nil {
		if api.IsStaleCursor(err) && !refresh {
			jww.INFO.Printf("[Registry] Stale %s cursor, refreshing", status)
			return r.load(ctx, status, true)
		}
		return r.fail(err, "load %s conversations", status)
	}

	r.mux.Lock()
	if refresh {
		r.replaceLaneLocked(status, page.Conversations)
		l.cursor = page.Cursor
		r.pollSuspended = false
	} else {
		for _, c := range page.Conversations {
			r.mergeLocked(c)
		}
		// A concurrent refresh moved the lane; keep its cursor.
		if l.cursor == cursor {
			l.cursor = page.Cursor
		}
	}
	l.loaded = true
	r.mux.Unlock()

	jww.DEBUG.Printf("[Registry] Loaded %d %s conversations (refresh: %t)",
		len(page.Conversations), status, refresh)
	r.notify()
	r.enrich(ctx, page.Conversations)
	return nil
}

// replaceLaneLocked drops every cached conversation of the lane not present in
// the fresh list, then merges the list. Conversations with an optimistic
// mutation in flight are kept.
func (r *Registry) replaceLaneLocked(status api.ConversationStatus,
	fresh []api.Conversation) {
	present := make(map[string]struct{}, len(fresh))
	for _, c := range fresh {
		present[c.ID] = struct{}{}
	}
	for id, c := range r.convos {
		if c.Status != status || r.pending[id] > 0 {
			continue
		}
		if _, exists := present[id]; !exists {
			delete(r.convos, id)
		}
	}
	for _, c := range fresh {
		r.mergeLocked(c)
	}
}

// mergeLocked stores a conversation from the service unless the cached copy
// has a newer revision. Equal revisions are replaced, last seen wins.
func (r *Registry) mergeLocked(c api.Conversation) {
	if c.ID == "" {
		jww.WARN.Printf("[Registry] Discarding conversation without an ID")
		return
	}
	if r.pending[c.ID] > 0 {
		jww.TRACE.Printf("[Registry] Skipping %s, local change in flight", c.ID)
		return
	}
	if cached, exists := r.convos[c.ID]; exists &&
		api.CompareRevisions(c.Rev, cached.Rev) < 0 {
		jww.TRACE.Printf("[Registry] Discarding %s at revision %s, cached "+
			"revision is %s", c.ID, c.Rev, cached.Rev)
		return
	}
	c = c.Copy()
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	r.convos[c.ID] = c
}

// enrich makes sure the members of the conversations have profiles.
func (r *Registry) enrich(ctx context.Context, convos []api.Conversation) {
	if r.profiles == nil || len(convos) == 0 {
		return
	}
	var members []string
	for _, c := range convos {
		members = append(members, c.Members...)
	}
	r.profiles.EnsureProfiles(ctx, members, r.client)
}

// fail records a non-cancellation error in the error slot and returns it
// wrapped. Cancellation returns nil.
func (r *Registry) fail(err error, format string, args ...interface{}) error {
	if api.IsCanceled(err) {
		jww.DEBUG.Printf("[Registry] Canceled: "+format, args...)
		return nil
	}
	jww.WARN.Printf("[Registry] Failed to "+format+": %+v",
		append(args, err)...)
	r.errSlot.Set(err)
	return err
}

////////////////////////////////////////////////////////////////////////////////
// Projections                                                                //
////////////////////////////////////////////////////////////////////////////////

// Conversations returns the accepted lane, most recently active first.
func (r *Registry) Conversations() []api.Conversation {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.laneLocked(api.StatusAccepted)
}

// Requests returns the message-request lane, most recently active first.
func (r *Registry) Requests() []api.Conversation {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.laneLocked(api.StatusRequest)
}

// Conversation returns a cached conversation from either lane.
func (r *Registry) Conversation(id string) (api.Conversation, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	c, exists := r.convos[id]
	if !exists {
		return api.Conversation{}, false
	}
	return c.Copy(), true
}

// RequestCount returns the number of cached message requests.
func (r *Registry) RequestCount() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	n := 0
	for _, c := range r.convos {
		if c.Status == api.StatusRequest {
			n++
		}
	}
	return n
}

// TotalUnread sums the unread counts of the accepted lane.
func (r *Registry) TotalUnread() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	n := 0
	for _, c := range r.convos {
		if c.Status == api.StatusAccepted {
			n += c.UnreadCount
		}
	}
	return n
}

// ApplyLastMessage updates the last-message summary of a cached conversation
// if msg is at least as recent as the current one.
func (r *Registry) ApplyLastMessage(convoID string, msg api.Message) {
	r.mux.Lock()
	c, exists := r.convos[convoID]
	if !exists || (c.LastMessage != nil &&
		msg.SentAt.Before(c.LastMessage.SentAt)) {
		r.mux.Unlock()
		return
	}
	c.LastMessage = msg.Summary()
	r.convos[convoID] = c
	r.mux.Unlock()
	r.notify()
}

func (r *Registry) laneLocked(status api.ConversationStatus) []api.Conversation {
	list := make([]api.Conversation, 0, len(r.convos))
	for _, c := range r.convos {
		if c.Status == status {
			list = append(list, c.Copy())
		}
	}
	sortByActivity(list)
	return list
}

func sortByActivity(list []api.Conversation) {
	sort.Slice(list, func(i, j int) bool {
		ai, aj := list[i].LastActivity(), list[j].LastActivity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return list[i].ID < list[j].ID
	})
}

// notify hands snapshots to the update callback outside the lock.
func (r *Registry) notify() {
	r.mux.Lock()
	cb := r.updateCb
	if cb == nil {
		r.mux.Unlock()
		return
	}
	accepted := r.laneLocked(api.StatusAccepted)
	requests := r.laneLocked(api.StatusRequest)
	r.mux.Unlock()
	cb(accepted, requests)
}
