////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/convsync/api"
)

func loadedRegistry(t *testing.T) (*Registry, *api.MockClient) {
	r, client := newTestRegistry(t, 10)
	addConvos(client, 2, api.StatusAccepted)
	addConvos(client, 2, api.StatusRequest)
	require.NoError(t, r.LoadConversations(context.Background(), false))
	require.NoError(t, r.LoadRequests(context.Background(), false))
	return r, client
}

// Tests that confirmed mutations keep their local effect.
func TestRegistry_Mutations(t *testing.T) {
	r, client := loadedRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Mute(ctx, "c00"))
	c, _ := r.Conversation("c00")
	require.True(t, c.Muted)
	server, _ := client.GetConversation("c00")
	require.True(t, server.Muted)

	require.NoError(t, r.Unmute(ctx, "c00"))
	c, _ = r.Conversation("c00")
	require.False(t, c.Muted)

	require.NoError(t, r.AcceptConversation(ctx, "r00"))
	require.Len(t, r.Conversations(), 3)
	require.Equal(t, 1, r.RequestCount())

	require.NoError(t, r.DeclineRequest(ctx, "r01"))
	require.Equal(t, 0, r.RequestCount())

	require.NoError(t, r.Leave(ctx, "c01"))
	_, exists := r.Conversation("c01")
	require.False(t, exists)
}

// Tests that failed mutations restore the cache to its previous state.
func TestRegistry_Mutations_Rollback(t *testing.T) {
	r, client := loadedRegistry(t)
	ctx := context.Background()
	accepted, requests := r.Conversations(), r.Requests()

	calls := []struct {
		method string
		run    func() error
	}{
		{api.MethodMuteConversation, func() error { return r.Mute(ctx, "c00") }},
		{api.MethodLeaveConversation, func() error { return r.Leave(ctx, "c01") }},
		{api.MethodAcceptConversation, func() error {
			return r.AcceptConversation(ctx, "r00")
		}},
		{api.MethodDeclineRequest, func() error {
			return r.DeclineRequest(ctx, "r01")
		}},
	}
	for _, call := range calls {
		client.FailNext(call.method, api.ErrRejected)
		require.Error(t, call.run(), call.method)
		require.Equal(t, accepted, r.Conversations(), call.method)
		require.Equal(t, requests, r.Requests(), call.method)
	}
	require.NotNil(t, r.Errors().Current())
}

// Tests that a canceled mutation is reverted without an error.
func TestRegistry_Mutations_Canceled(t *testing.T) {
	r, client := loadedRegistry(t)
	client.SetHook(api.MethodMuteConversation, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Mute(ctx, "c00"))
	c, _ := r.Conversation("c00")
	require.False(t, c.Muted)
	require.Nil(t, r.Errors().Current())
}

// Tests that a failed mutation does not roll back over a mutation of the same
// conversation issued while it was in flight.
func TestRegistry_Mutations_Serialized(t *testing.T) {
	r, client := loadedRegistry(t)
	ctx := context.Background()
	release := make(chan struct{})
	client.SetHook(api.MethodMuteConversation, func(context.Context) error {
		<-release
		return api.ErrRejected
	})

	muteErr, leaveErr := make(chan error, 1), make(chan error, 1)
	go func() { muteErr <- r.Mute(ctx, "c00") }()
	require.Eventually(t, func() bool {
		return client.Calls(api.MethodMuteConversation) == 1
	}, time.Second, time.Millisecond)

	go func() { leaveErr <- r.Leave(ctx, "c00") }()
	require.Eventually(t, func() bool {
		r.mux.Lock()
		defer r.mux.Unlock()
		return r.pending["c00"] == 2
	}, time.Second, time.Millisecond)
	require.Equal(t, 0, client.Calls(api.MethodLeaveConversation))

	close(release)
	require.ErrorIs(t, <-muteErr, api.ErrRejected)
	require.NoError(t, <-leaveErr)

	_, cached := r.Conversation("c00")
	require.False(t, cached)
	_, onServer := client.GetConversation("c00")
	require.False(t, onServer)

	r.mux.Lock()
	require.Empty(t, r.pending)
	require.Empty(t, r.turns)
	r.mux.Unlock()
}

// Tests that a mutation waiting behind another gives up without an error when
// its context ends.
func TestRegistry_Mutations_CanceledWhileQueued(t *testing.T) {
	r, client := loadedRegistry(t)
	release := make(chan struct{})
	client.SetHook(api.MethodMuteConversation, func(context.Context) error {
		<-release
		return nil
	})

	muteErr := make(chan error, 1)
	go func() { muteErr <- r.Mute(context.Background(), "c00") }()
	require.Eventually(t, func() bool {
		return client.Calls(api.MethodMuteConversation) == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Leave(ctx, "c00"))
	require.Equal(t, 0, client.Calls(api.MethodLeaveConversation))

	close(release)
	require.NoError(t, <-muteErr)
	c, cached := r.Conversation("c00")
	require.True(t, cached)
	require.True(t, c.Muted)
}

// Tests that missing identifiers are rejected without a request.
func TestRegistry_Mutations_MissingIdentifier(t *testing.T) {
	r, client := loadedRegistry(t)
	ctx := context.Background()

	require.ErrorIs(t, r.Mute(ctx, ""), ErrMissingIdentifier)
	require.ErrorIs(t, r.MarkConversationAsRead(ctx, ""), ErrMissingIdentifier)
	require.Equal(t, 0, client.Calls(api.MethodMuteConversation))
	require.Equal(t, 0, client.Calls(api.MethodUpdateRead))
}

// Tests that read state stays advanced when the service call fails.
func TestRegistry_MarkRead_NoRollback(t *testing.T) {
	r, client := loadedRegistry(t)
	ctx := context.Background()
	require.Equal(t, 2, r.TotalUnread())

	client.FailNext(api.MethodUpdateRead, api.ErrMockFailure)
	require.Error(t, r.MarkConversationAsRead(ctx, "c00"))
	c, _ := r.Conversation("c00")
	require.Equal(t, 0, c.UnreadCount)
	require.NotNil(t, r.Errors().Current())

	client.FailNext(api.MethodUpdateAllRead, api.ErrMockFailure)
	require.Error(t, r.MarkAllConversationsAsRead(ctx))
	require.Equal(t, 0, r.TotalUnread())
}

// Tests that a poll merge does not overwrite an optimistic change in flight.
func TestRegistry_Mutations_PendingSkipsMerge(t *testing.T) {
	r, client := loadedRegistry(t)
	release := make(chan struct{})
	client.SetHook(api.MethodMuteConversation, func(context.Context) error {
		<-release
		return nil
	})

	done := make(chan error)
	go func() { done <- r.Mute(context.Background(), "c00") }()

	// Wait for the optimistic change.
	for {
		if c, _ := r.Conversation("c00"); c.Muted {
			break
		}
	}
	server, _ := client.GetConversation("c00")
	server.Rev = "9999999999"
	r.mux.Lock()
	r.mergeLocked(server)
	r.mux.Unlock()

	c, _ := r.Conversation("c00")
	require.True(t, c.Muted)
	close(release)
	require.NoError(t, <-done)
}
