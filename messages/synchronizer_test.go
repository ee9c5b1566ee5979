////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/convsync/api"
)

const (
	testSelf  = "did:example:self"
	testPeer  = "did:example:peer"
	testConvo = "c1"
)

// testConversations records last-message updates.
type testConversations struct {
	last map[string]api.Message
	mux  sync.Mutex
}

func (tc *testConversations) SelfID() string { return testSelf }

func (tc *testConversations) ApplyLastMessage(convoID string, msg api.Message) {
	tc.mux.Lock()
	defer tc.mux.Unlock()
	tc.last[convoID] = msg
}

func (tc *testConversations) lastMessage(convoID string) (api.Message, bool) {
	tc.mux.Lock()
	defer tc.mux.Unlock()
	m, exists := tc.last[convoID]
	return m, exists
}

func newTestSynchronizer(t *testing.T, pageSize int) (
	*Synchronizer, *api.MockClient, *testConversations) {
	client := api.NewMockClient(testSelf)
	client.AddConversation(api.Conversation{ID: testConvo,
		Members: []string{testSelf, testPeer}})
	convos := &testConversations{last: make(map[string]api.Message)}
	params := GetDefaultParams()
	params.PageSize = pageSize
	params.PollInterval = 2 * time.Millisecond
	return NewSynchronizer(client, convos, nil, params), client, convos
}

func messageIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key()
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for condition.")
		}
		time.Sleep(time.Millisecond)
	}
}

// Tests that pages are merged oldest first and loading stops at the oldest.
func TestSynchronizer_LoadMessages_Paging(t *testing.T) {
	s, client, _ := newTestSynchronizer(t, 2)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, client.AddMessage(testConvo,
			api.Message{SenderID: testPeer, Text: "x"}).ID)
	}
	ctx := context.Background()

	require.NoError(t, s.LoadMessages(ctx, testConvo, false))
	require.Equal(t, ids[3:], messageIDs(s.Messages(testConvo)))

	require.NoError(t, s.LoadMessages(ctx, testConvo, false))
	require.NoError(t, s.LoadMessages(ctx, testConvo, false))
	require.Equal(t, ids, messageIDs(s.Messages(testConvo)))

	calls := client.Calls(api.MethodListMessages)
	require.NoError(t, s.LoadMessages(ctx, testConvo, false))
	require.Equal(t, calls, client.Calls(api.MethodListMessages))
}

// Tests that a poll result overlapping the cache keeps one entry per ID, with
// the most recent fields, ordered by time.
func TestConversationCache_merge(t *testing.T) {
	t1 := time.Unix(100, 0)
	t2, t3 := t1.Add(time.Second), t1.Add(2*time.Second)
	c := newConversationCache()
	c.merge(testConvo, []api.MessageView{
		api.NewTextView(api.Message{ID: "m2", Text: "two", SentAt: t2}),
		api.NewTextView(api.Message{ID: "m1", Text: "one", SentAt: t1}),
	})

	c.merge(testConvo, []api.MessageView{
		api.NewTextView(api.Message{ID: "m3", Text: "three", SentAt: t3}),
		api.NewTextView(api.Message{ID: "m2", Text: "two (edited)", SentAt: t2}),
	})

	entries := c.snapshot()
	require.Equal(t, []string{"m1", "m2", "m3"}, messageIDs(entries))
	require.Equal(t, "two (edited)", entries[1].Message.Text)
}

// Tests that deleted markers remove cached messages and unknown payloads are
// skipped.
func TestConversationCache_merge_Variants(t *testing.T) {
	c := newConversationCache()
	c.merge(testConvo, []api.MessageView{
		api.NewTextView(api.Message{ID: "m1", SentAt: time.Unix(1, 0)}),
		api.NewTextView(api.Message{ID: "m2", SentAt: time.Unix(2, 0)}),
	})
	c.merge(testConvo, []api.MessageView{
		api.NewDeletedView(api.DeletedMessage{ID: "m1"}),
		api.NewUnknownView(api.UnknownPayload{Type: "chat.example#poll"}),
	})
	require.Equal(t, []string{"m2"}, messageIDs(c.snapshot()))
}

// Tests that a page fetched from a cursor that is no longer the cache's
// cursor is rejected.
func TestSynchronizer_applyPageLocked_StaleCursor(t *testing.T) {
	s, _, _ := newTestSynchronizer(t, 2)
	c := s.cacheLocked(testConvo, true)
	c.loaded = true
	c.cursor = "m5"

	page := api.MessagePage{Messages: []api.MessageView{
		api.NewTextView(api.Message{ID: "m9", SentAt: time.Unix(9, 0)}),
	}, Cursor: "m8"}

	require.False(t, s.applyPageLocked(c, testConvo, page, false, 1, "m3", 0))
	require.Empty(t, c.entries)
	require.Equal(t, "m5", c.cursor)

	require.True(t, s.applyPageLocked(c, testConvo, page, false, 2, "m5", 0))
	require.Equal(t, "m8", c.cursor)

	// A refresh that started before an applied one is dropped.
	require.True(t, s.applyPageLocked(c, testConvo, api.MessagePage{}, true,
		4, "", 0))
	require.False(t, s.applyPageLocked(c, testConvo, page, true, 3, "", 0))
	require.Empty(t, c.entries)
}

// Tests that a refresh keeps pending sends.
func TestSynchronizer_LoadMessages_KeepsPending(t *testing.T) {
	s, client, _ := newTestSynchronizer(t, 10)
	client.AddMessage(testConvo, api.Message{SenderID: testPeer, Text: "hi"})
	release := make(chan struct{})
	client.SetHook(api.MethodSendMessage, func(context.Context) error {
		<-release
		return nil
	})

	done := make(chan bool)
	go func() { done <- s.SendMessage(context.Background(), testConvo, "hey") }()
	waitFor(t, func() bool { return len(s.Messages(testConvo)) == 1 })

	require.NoError(t, s.LoadMessages(context.Background(), testConvo, true))
	entries := s.Messages(testConvo)
	require.Len(t, entries, 2)
	states := []EntryState{entries[0].State, entries[1].State}
	require.ElementsMatch(t, []EntryState{Pending, Confirmed}, states)

	close(release)
	require.True(t, <-done)
	for _, e := range s.Messages(testConvo) {
		require.Equal(t, Confirmed, e.State)
	}
}

// Tests that the typing set drops self and expires.
func TestSynchronizer_Typing(t *testing.T) {
	s, client, _ := newTestSynchronizer(t, 10)
	s.params.TypingTTL = 20 * time.Millisecond
	client.SetTyping(testConvo, testSelf, testPeer)

	require.NoError(t, s.LoadMessages(context.Background(), testConvo, true))
	require.Equal(t, []string{testPeer}, s.Typing(testConvo))

	time.Sleep(40 * time.Millisecond)
	require.Empty(t, s.Typing(testConvo))
}

// Tests that a failed load leaves the cache untouched.
func TestSynchronizer_LoadMessages_Failure(t *testing.T) {
	s, client, _ := newTestSynchronizer(t, 10)
	client.AddMessage(testConvo, api.Message{SenderID: testPeer, Text: "hi"})
	require.NoError(t, s.LoadMessages(context.Background(), testConvo, true))
	before := s.Messages(testConvo)

	client.FailNext(api.MethodListMessages, api.ErrMockFailure)
	require.Error(t, s.LoadMessages(context.Background(), testConvo, true))
	require.Equal(t, before, s.Messages(testConvo))
	require.NotNil(t, s.Errors().Current())
}
