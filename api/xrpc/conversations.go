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
	"net/url"
	"strconv"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
)

func (c *Client) ListConversations(ctx context.Context,
	status api.ConversationStatus, cursor string,
	limit int) (api.ConversationPage, error) {
	params := url.Values{"status": {statusParam(status)}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var out listConvosOutput
	if err := c.query(ctx, nsidListConvos, params, &out); err != nil {
		return api.ConversationPage{}, err
	}

	page := api.ConversationPage{
		Conversations: make([]api.Conversation, 0, len(out.Convos)),
		Cursor:        out.Cursor,
	}
	for _, v := range out.Convos {
		convo, err := v.toConversation()
		if err != nil {
			jww.WARN.Printf("[XRPC] Dropping undecodable conversation: %+v",
				err)
			continue
		}
		page.Conversations = append(page.Conversations, convo)
	}
	return page, nil
}

func (c *Client) MuteConversation(ctx context.Context, convoID string) error {
	return c.procedure(ctx, nsidMuteConvo, convoInput{convoID}, nil)
}

func (c *Client) UnmuteConversation(ctx context.Context, convoID string) error {
	return c.procedure(ctx, nsidUnmuteConvo, convoInput{convoID}, nil)
}

func (c *Client) LeaveConversation(ctx context.Context, convoID string) error {
	return c.procedure(ctx, nsidLeaveConvo, convoInput{convoID}, nil)
}

func (c *Client) AcceptConversation(ctx context.Context, convoID string) error {
	return c.procedure(ctx, nsidAcceptConvo, convoInput{convoID}, nil)
}

// DeclineRequest leaves the request conversation; the service has no
// separate decline call.
func (c *Client) DeclineRequest(ctx context.Context, convoID string) error {
	return c.procedure(ctx, nsidLeaveConvo, convoInput{convoID}, nil)
}

func (c *Client) UpdateRead(ctx context.Context, convoID,
	messageID string) error {
	return c.procedure(ctx, nsidUpdateRead,
		messageRefInput{ConvoID: convoID, MessageID: messageID}, nil)
}

func (c *Client) UpdateAllRead(ctx context.Context) error {
	in := struct {
		Status string `json:"status"`
	}{statusAccepted}
	return c.procedure(ctx, nsidUpdateAllRead, in, nil)
}

func (c *Client) ListConversationAdmins(ctx context.Context,
	convoID string) ([]string, error) {
	var out struct {
		Admins []actorRef `json:"admins"`
	}
	err := c.query(ctx, nsidGetConvoAdmins, url.Values{"convoId": {convoID}},
		&out)
	if err != nil {
		return nil, err
	}
	admins := make([]string, 0, len(out.Admins))
	for _, a := range out.Admins {
		admins = append(admins, a.DID)
	}
	return admins, nil
}

func (c *Client) GetActorMetadata(ctx context.Context,
	actor string) (api.ActorMetadata, error) {
	var out struct {
		All struct {
			MessagesSent int `json:"messagesSent"`
			Convos       int `json:"convos"`
		} `json:"all"`
		AccessAllowed bool `json:"accessAllowed"`
	}
	err := c.query(ctx, nsidGetActorMetadata, url.Values{"actor": {actor}},
		&out)
	if err != nil {
		return api.ActorMetadata{}, err
	}
	return api.ActorMetadata{
		DID:           actor,
		MessagesSent:  out.All.MessagesSent,
		Conversations: out.All.Convos,
		AccessAllowed: out.AccessAllowed,
	}, nil
}

func (c *Client) GetMessageContext(ctx context.Context, convoID,
	messageID string, before, after int) ([]api.MessageView, error) {
	params := url.Values{
		"convoId":   {convoID},
		"messageId": {messageID},
		"before":    {strconv.Itoa(before)},
		"after":     {strconv.Itoa(after)},
	}
	var out struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := c.query(ctx, nsidGetMessageContext, params, &out); err != nil {
		return nil, err
	}
	return decodeMessageViews(convoID, out.Messages)
}

func (c *Client) UpdateActorAccess(ctx context.Context, actor string,
	allowAccess bool, ref string) error {
	in := struct {
		Actor       string `json:"actor"`
		AllowAccess bool   `json:"allowAccess"`
		Ref         string `json:"ref,omitempty"`
	}{actor, allowAccess, ref}
	return c.procedure(ctx, nsidUpdateActorAccess, in, nil)
}
