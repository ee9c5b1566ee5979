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

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/profiles"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

// Tests that local search matches members by profile case-insensitively,
// never matches self and makes no requests.
func TestRegistry_SearchLocal(t *testing.T) {
	client := api.NewMockClient(testSelf)
	params := profiles.GetDefaultParams()
	params.FetchRate = 0
	shared, err := profiles.NewSharedStore(
		versioned.NewKV(ekv.MakeMemstore()), params.SharedCapacity)
	require.NoError(t, err)
	cache := profiles.NewCache(shared, params)
	r := NewRegistry(client, cache, testSelf, nil, GetDefaultParams())

	client.SetProfile(api.Profile{DID: testSelf, Handle: "me.test",
		DisplayName: "Straße Self"})
	client.SetProfile(api.Profile{DID: "did:example:alice", Handle: "alice.test",
		DisplayName: "Alice Liddell"})
	client.SetProfile(api.Profile{DID: "did:example:bob", Handle: "bob.test",
		DisplayName: "Bob STRASSE"})
	client.AddConversation(api.Conversation{ID: "c1",
		Members: []string{testSelf, "did:example:alice#laptop"}})
	client.AddConversation(api.Conversation{ID: "c2",
		Members: []string{testSelf, "did:example:bob"}})
	require.NoError(t, r.LoadConversations(context.Background(), false))

	calls := client.Calls(api.MethodListConversations) +
		client.Calls(api.MethodGetProfiles)

	res := r.SearchLocal("ALICE", testSelf)
	require.Equal(t, []string{"c1"}, ids(res.Conversations))
	require.Len(t, res.Profiles, 1)
	require.Equal(t, "did:example:alice", res.Profiles[0].ID)

	res = r.SearchLocal("strasse", testSelf)
	require.Equal(t, []string{"c2"}, ids(res.Conversations))
	require.Len(t, res.Profiles, 1, "self matched")

	res = r.SearchLocal("me.test", testSelf)
	require.Empty(t, res.Conversations)
	require.Empty(t, res.Profiles)

	res = r.SearchLocal("  ", testSelf)
	require.Len(t, res.Conversations, 2)

	require.Equal(t, calls, client.Calls(api.MethodListConversations)+
		client.Calls(api.MethodGetProfiles))
}
