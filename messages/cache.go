////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messages

import (
	"sort"
	"strconv"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
)

// EntryState tags whether an entry is confirmed by the service.
type EntryState uint8

const (
	// Pending entries were sent locally and have no service ID yet.
	Pending EntryState = iota

	// Confirmed entries were returned by the service.
	Confirmed
)

// String prints a human-readable form of the EntryState for logging and
// debugging. This function adheres to the fmt.Stringer interface.
func (s EntryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return "INVALID STATE: " + strconv.Itoa(int(s))
	}
}

// Entry is a message in a conversation cache.
type Entry struct {
	State EntryState

	// PendingID marks a Pending entry until the service confirms it. The
	// Message of a Pending entry has no ID.
	PendingID string

	Message api.Message

	// Tombstoned is set while, and after, the message is deleted for self.
	Tombstoned bool
}

// Key returns the message ID of confirmed entries and the pending marker of
// pending ones.
func (e Entry) Key() string {
	if e.State == Pending {
		return e.PendingID
	}
	return e.Message.ID
}

func (e Entry) copy() Entry {
	e.Message = e.Message.Copy()
	return e
}

// conversationCache is the message state of one conversation. It is only
// accessed under the Synchronizer lock.
type conversationCache struct {
	// entries are ordered by send time, then key.
	entries []Entry

	// cursor points at the next older page; empty once the oldest message was
	// loaded.
	cursor string
	loaded bool

	// generation increases every time a refresh replaces the cache. Fetches
	// started under an older generation are not applied.
	generation uint64

	// refreshSeq orders refreshes; a refresh that started before the applied
	// one is dropped.
	fetchSeq   uint64
	refreshSeq uint64

	suspended bool
	typing    map[string]time.Time
}

func newConversationCache() *conversationCache {
	return &conversationCache{typing: make(map[string]time.Time)}
}

func (c *conversationCache) sort() {
	sort.SliceStable(c.entries, func(i, j int) bool {
		a, b := c.entries[i], c.entries[j]
		if !a.Message.SentAt.Equal(b.Message.SentAt) {
			return a.Message.SentAt.Before(b.Message.SentAt)
		}
		return a.Key() < b.Key()
	})
}

// find returns the index of the confirmed entry with the ID, or -1.
func (c *conversationCache) find(messageID string) int {
	for i, e := range c.entries {
		if e.State == Confirmed && e.Message.ID == messageID {
			return i
		}
	}
	return -1
}

// findPending returns the index of the pending entry with the marker, or -1.
func (c *conversationCache) findPending(marker string) int {
	for i, e := range c.entries {
		if e.State == Pending && e.PendingID == marker {
			return i
		}
	}
	return -1
}

// upsert stores a confirmed message, replacing any cached copy but keeping its
// tombstone.
func (c *conversationCache) upsert(m api.Message) {
	if i := c.find(m.ID); i >= 0 {
		jww.TRACE.Printf("[Sync] Replacing cached message %s", m.ID)
		c.entries[i].Message = m.Copy()
		return
	}
	c.entries = append(c.entries, Entry{State: Confirmed, Message: m.Copy()})
}

func (c *conversationCache) remove(messageID string) bool {
	if i := c.find(messageID); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		return true
	}
	return false
}

func (c *conversationCache) removePending(marker string) bool {
	if i := c.findPending(marker); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		return true
	}
	return false
}

// merge applies a page of views: text messages are stored by ID, deleted
// markers remove the message and unknown payloads are skipped.
func (c *conversationCache) merge(convoID string, views []api.MessageView) {
	for _, v := range views {
		switch v.Kind {
		case api.KindText:
			c.upsert(*v.Text)
		case api.KindDeleted:
			if c.remove(v.Deleted.ID) {
				jww.DEBUG.Printf("[Sync] Message %s in %s was deleted by its "+
					"sender", v.Deleted.ID, convoID)
			}
		default:
			jww.DEBUG.Printf("[Sync] Skipping unknown payload %q in %s",
				v.Unknown.Type, convoID)
		}
	}
	c.sort()
}

// replace swaps the confirmed entries for a fresh newest page. Pending entries
// are kept, and so are tombstones of messages still on the page.
func (c *conversationCache) replace(convoID string, views []api.MessageView) {
	tombstones := make(map[string]bool)
	kept := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.State == Pending {
			kept = append(kept, e)
		} else if e.Tombstoned {
			tombstones[e.Message.ID] = true
		}
	}
	c.entries = kept
	c.merge(convoID, views)
	for i := range c.entries {
		if c.entries[i].State == Confirmed && tombstones[c.entries[i].Message.ID] {
			c.entries[i].Tombstoned = true
		}
	}
}

// newestConfirmedID returns the ID of the newest confirmed message.
func (c *conversationCache) newestConfirmedID() string {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].State == Confirmed {
			return c.entries[i].Message.ID
		}
	}
	return ""
}

func (c *conversationCache) snapshot() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.copy()
	}
	return out
}

// setTyping refreshes the expiry of every reported member.
func (c *conversationCache) setTyping(members []string, selfID string,
	expires time.Time) {
	for _, m := range members {
		if m != selfID {
			c.typing[m] = expires
		}
	}
}

// typingAt returns the members typing at the time, dropping expired ones.
func (c *conversationCache) typingAt(now time.Time) []string {
	var members []string
	for m, expires := range c.typing {
		if now.After(expires) {
			delete(c.typing, m)
			continue
		}
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}
