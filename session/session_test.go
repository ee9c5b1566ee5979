////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/mls"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

const (
	testSelf  = "did:example:self"
	testPeer  = "did:example:peer"
	testConvo = "c1"
)

func newTestSession(t *testing.T) (*Session, *api.MockClient) {
	client := api.NewMockClient(testSelf)
	client.AddConversation(api.Conversation{ID: testConvo,
		Members: []string{testSelf, testPeer}})
	client.SetProfile(api.Profile{DID: testPeer, Handle: "peer.test"})

	params := GetDefaultParams()
	params.Conversations.PollInterval = time.Hour
	params.Messages.PollInterval = time.Hour
	params.MLS.KeyPackageMinimum = 2
	params.MLS.InitialBatch = 3

	s, err := New(client, testSelf, versioned.NewKV(ekv.MakeMemstore()),
		versioned.NewKV(ekv.MakeMemstore()), params)
	require.NoError(t, err)
	return s, client
}

// Tests that JSON overrides apply on top of the defaults.
func TestGetParameters(t *testing.T) {
	p, err := GetParameters(`{"Messages": {"PageSize": 10}, "EventQueueSize": 5}`)
	require.NoError(t, err)

	expected := GetDefaultParams()
	expected.Messages.PageSize = 10
	expected.EventQueueSize = 5
	require.Equal(t, expected, p)

	p, err = GetParameters("")
	require.NoError(t, err)
	require.Equal(t, GetDefaultParams(), p)

	_, err = GetParameters("{")
	require.Error(t, err)
}

// Tests that Params survive a JSON round trip through GetParameters.
func TestParams_Marshal(t *testing.T) {
	p := GetDefaultParams()
	p.Profiles.SharedCapacity = 42
	data, err := p.Marshal()
	require.NoError(t, err)

	loaded, err := GetParameters(string(data))
	require.NoError(t, err)
	require.Equal(t, p, loaded)
}

// Tests that New refuses an empty account.
func TestNew_NoAccount(t *testing.T) {
	_, err := New(api.NewMockClient(testSelf), "",
		versioned.NewKV(ekv.MakeMemstore()),
		versioned.NewKV(ekv.MakeMemstore()), GetDefaultParams())
	require.Error(t, err)
}

// Tests the wired components working together for one account.
func TestSession_EndToEnd(t *testing.T) {
	s, client := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.StartServices())
	require.NoError(t, s.StartServices())

	require.NoError(t, s.Conversations().LoadConversations(ctx, true))
	require.Len(t, s.Conversations().Conversations(), 1)
	entry, exists := s.Profiles().Get(testPeer)
	require.True(t, exists)
	require.Equal(t, "peer.test", entry.Handle)

	require.NoError(t, s.OpenConversation(ctx, testConvo))
	require.True(t, s.Messages().SendMessage(ctx, testConvo, "hello"))

	entries := s.Messages().Messages(testConvo)
	require.Len(t, entries, 1)
	sent := entries[0].Message
	require.Equal(t, "hello", sent.Text)

	convo, exists := s.Conversations().Conversation(testConvo)
	require.True(t, exists)
	require.Equal(t, sent.ID, convo.LastMessage.ID)

	require.NoError(t, s.Reactions().ToggleReaction(ctx, testConvo, sent.ID, "👍"))
	msg, exists := s.Messages().Message(testConvo, sent.ID)
	require.True(t, exists)
	r, exists := msg.ReactionBy(testSelf)
	require.True(t, exists)
	require.Equal(t, "👍", r.Symbol)

	require.NoError(t, s.MLS().Enable(ctx))
	require.Equal(t, mls.OptedIn, s.MLS().State())
	require.True(t, s.Settings().OptedIn())
	require.Len(t, client.KeyPackages(s.MLS().DeviceID()), 3)

	for _, slot := range s.ErrorSlots() {
		require.Nil(t, slot.Current(), slot.Area())
	}

	require.NoError(t, s.CloseConversation(testConvo))
	require.Empty(t, s.Messages().Messages(testConvo))

	require.NoError(t, s.StopServices(time.Second))
	require.Error(t, s.StartServices())
}

// Tests that stopping a session that never started does not block.
func TestSession_StopServices_NotStarted(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.StopServices(time.Second))
}
