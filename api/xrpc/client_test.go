////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package xrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/convsync/api"
)

const testToken = "test-token"

// newTestServer serves a fixed handler per NSID and fails on unknown ones.
func newTestServer(t *testing.T,
	handlers map[string]http.HandlerFunc) *Client {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
			nsid := strings.TrimPrefix(r.URL.Path, "/xrpc/")
			h, exists := handlers[nsid]
			if !exists {
				t.Errorf("Unexpected call to %s", nsid)
				w.WriteHeader(http.StatusNotImplemented)
				return
			}
			h(w, r)
		}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", testToken, nil, GetDefaultParams())
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// Tests that a message listing decodes every union variant, keeping unknown
// payloads instead of failing.
func TestClient_ListMessages_Union(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidGetMessages: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "convo1", r.URL.Query().Get("convoId"))
			require.Equal(t, "50", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, `{
				"cursor": "older",
				"typing": ["did:plc:bob"],
				"messages": [
					{"$type": "chat.bsky.convo.defs#messageView", "id": "m3",
					 "rev": "3", "text": "hi", "sender": {"did": "did:plc:bob"},
					 "sentAt": "2024-01-02T03:04:05Z",
					 "reactions": [{"value": "👍", "sender": {"did": "did:plc:me"}}]},
					{"$type": "chat.bsky.convo.defs#deletedMessageView",
					 "id": "m2", "rev": "2", "sender": {"did": "did:plc:bob"},
					 "sentAt": "2024-01-02T03:04:00Z"},
					{"$type": "chat.bsky.convo.defs#systemMessageView",
					 "id": "m1", "data": {"kind": "memberJoined"}}
				]}`)
		},
	})

	page, err := c.ListMessages(context.Background(), "convo1", "", 50)
	require.NoError(t, err)
	require.Equal(t, "older", page.Cursor)
	require.Equal(t, []string{"did:plc:bob"}, page.Typing)
	require.Len(t, page.Messages, 3)

	text := page.Messages[0]
	require.Equal(t, api.KindText, text.Kind)
	require.Equal(t, "m3", text.Text.ID)
	require.Equal(t, "convo1", text.Text.ConversationID)
	require.Equal(t, "did:plc:bob", text.Text.SenderID)
	require.Equal(t, "hi", text.Text.Text)
	require.True(t, text.Text.SentAt.Equal(
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	r, exists := text.Text.ReactionBy("did:plc:me")
	require.True(t, exists)
	require.Equal(t, "👍", r.Symbol)
	require.Equal(t, "m3", r.MessageID)

	deleted := page.Messages[1]
	require.Equal(t, api.KindDeleted, deleted.Kind)
	require.Equal(t, "m2", deleted.MessageID())

	unknown := page.Messages[2]
	require.Equal(t, api.KindUnknown, unknown.Kind)
	require.Equal(t, "chat.bsky.convo.defs#systemMessageView",
		unknown.Unknown.Type)
	require.Empty(t, unknown.MessageID())
	require.True(t, json.Valid(unknown.Unknown.Raw))
}

// Tests that an invalid cursor response maps onto the stale cursor error.
func TestClient_ListMessagesSince_StaleCursor(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidGetMessages: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "m9", r.URL.Query().Get("since"))
			writeJSON(w, http.StatusBadRequest,
				`{"error": "InvalidCursor", "message": "unknown position"}`)
		},
	})

	_, err := c.ListMessagesSince(context.Background(), "convo1", "m9", 50)
	require.True(t, api.IsStaleCursor(err))
	require.Contains(t, err.Error(), "unknown position")
}

// Tests the mapping of error responses onto the api error taxonomy.
func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		body   string
		target error
	}{
		{http.StatusBadRequest, `{"error":"InvalidCursor"}`, api.ErrStaleCursor},
		{http.StatusNotFound, `{"error":"NotFound"}`, api.ErrNotFound},
		{http.StatusBadRequest, `{"error":"ConvoNotFound"}`, api.ErrNotFound},
		{http.StatusUnauthorized, `{"error":"AuthRequired"}`, api.ErrUnauthorized},
		{http.StatusForbidden, `not json`, api.ErrUnauthorized},
		{http.StatusBadRequest, `{"error":"InvalidRequest"}`, api.ErrRejected},
	}

	for i, tt := range tests {
		err := classify("nsid", tt.status, []byte(tt.body))
		if !errors.Is(err, tt.target) {
			t.Errorf("Unexpected classification (%d)."+
				"\nexpected: %v\nreceived: %v", i, tt.target, err)
		}
	}

	err := classify("nsid", http.StatusBadGateway, []byte("upstream down"))
	for _, target := range []error{api.ErrStaleCursor, api.ErrNotFound,
		api.ErrUnauthorized, api.ErrRejected} {
		require.False(t, errors.Is(err, target))
	}
	require.Contains(t, err.Error(), "upstream down")
}

// Tests that conversations decode their members, lane and last message.
func TestClient_ListConversations(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidListConvos: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, statusRequest, r.URL.Query().Get("status"))
			require.Equal(t, "c1", r.URL.Query().Get("cursor"))
			writeJSON(w, http.StatusOK, `{
				"cursor": "c2",
				"convos": [{
					"id": "convo1", "rev": "0000000005", "unreadCount": 2,
					"muted": true, "status": "request",
					"members": [{"did": "did:plc:me"}, {"did": "did:plc:bob"}],
					"lastMessage": {"$type": "chat.bsky.convo.defs#deletedMessageView",
						"id": "m4", "sender": {"did": "did:plc:bob"},
						"sentAt": "2024-01-02T03:04:05Z"}
				}, {
					"id": "convo2", "rev": "0000000003", "status": "request",
					"members": [{"did": "did:plc:me"}]
				}]}`)
		},
	})

	page, err := c.ListConversations(context.Background(), api.StatusRequest,
		"c1", 0)
	require.NoError(t, err)
	require.Equal(t, "c2", page.Cursor)
	require.Len(t, page.Conversations, 2)

	convo := page.Conversations[0]
	require.Equal(t, "convo1", convo.ID)
	require.Equal(t, api.StatusRequest, convo.Status)
	require.Equal(t, []string{"did:plc:me", "did:plc:bob"}, convo.Members)
	require.Equal(t, 2, convo.UnreadCount)
	require.True(t, convo.Muted)
	require.NotNil(t, convo.LastMessage)
	require.True(t, convo.LastMessage.Deleted)
	require.Equal(t, "m4", convo.LastMessage.ID)

	require.Nil(t, page.Conversations[1].LastMessage)
}

// Tests that procedures send their input as JSON and decode the result.
func TestClient_AddReaction(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidAddReaction: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var in reactionInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			require.Equal(t, reactionInput{"convo1", "m1", "🎉"}, in)
			writeJSON(w, http.StatusOK, `{"message": {
				"$type": "chat.bsky.convo.defs#messageView", "id": "m1",
				"rev": "7", "text": "hi", "sender": {"did": "did:plc:bob"},
				"reactions": [{"value": "🎉", "sender": {"did": "did:plc:me"}}]}}`)
		},
	})

	msg, err := c.AddReaction(context.Background(), "convo1", "m1", "🎉")
	require.NoError(t, err)
	require.Equal(t, "7", msg.Rev)
	require.Equal(t, []api.Reaction{{MessageID: "m1", ReactorID: "did:plc:me",
		Symbol: "🎉"}}, msg.Reactions)
}

// Tests that profile lookups pass every actor and refuse oversized batches
// without a call.
func TestClient_GetProfiles(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidGetProfiles: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, []string{"did:plc:a", "did:plc:b"},
				r.URL.Query()["actors"])
			writeJSON(w, http.StatusOK, `{"profiles": [
				{"did": "did:plc:a", "handle": "a.test", "displayName": "A"}]}`)
		},
	})

	profiles, err := c.GetProfiles(context.Background(),
		[]string{"did:plc:a", "did:plc:b"})
	require.NoError(t, err)
	require.Equal(t, []api.Profile{{DID: "did:plc:a", Handle: "a.test",
		DisplayName: "A"}}, profiles)

	tooMany := make([]string, api.MaxProfileBatch+1)
	_, err = c.GetProfiles(context.Background(), tooMany)
	require.Error(t, err)
}

// Tests that a canceled call is reported as cancellation.
func TestClient_Canceled(t *testing.T) {
	release := make(chan struct{})
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidMuteConvo: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- c.MuteConversation(ctx, "convo1") }()
	cancel()

	select {
	case err := <-errCh:
		require.True(t, api.IsCanceled(err), "error: %+v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the canceled call to return.")
	}
}

// Tests the device calls against their wire shapes.
func TestClient_Devices(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		nsidRegisterDevice: func(w http.ResponseWriter, r *http.Request) {
			var in api.DeviceRegistration
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			require.Equal(t, "laptop", in.DeviceName)
			require.Equal(t, []byte{1, 2, 3}, in.SignatureKey)
			writeJSON(w, http.StatusOK,
				`{"deviceId": "dev1", "deviceName": "laptop"}`)
		},
		nsidGetKeyPackageStats: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "dev1", r.URL.Query().Get("deviceId"))
			writeJSON(w, http.StatusOK, `{"available": 7}`)
		},
		nsidGetOptInStatus: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"optedIn": true, "deviceId": "dev1"}`)
		},
	})

	dev, err := c.RegisterDevice(context.Background(), api.DeviceRegistration{
		DeviceName: "laptop", SignatureKey: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.Equal(t, "dev1", dev.ID)

	n, err := c.CountKeyPackages(context.Background(), "dev1")
	require.NoError(t, err)
	require.Equal(t, 7, n)

	status, err := c.GetOptInStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, api.OptInStatus{Enabled: true, DeviceID: "dev1"}, status)
}
