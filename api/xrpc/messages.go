////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package xrpc

import (
	"context"
	"net/url"
	"strconv"

	"gitlab.com/elixxir/convsync/api"
)

func (c *Client) getMessages(ctx context.Context, convoID string,
	params url.Values) (api.MessagePage, error) {
	params.Set("convoId", convoID)
	var out getMessagesOutput
	if err := c.query(ctx, nsidGetMessages, params, &out); err != nil {
		return api.MessagePage{}, err
	}
	views, err := decodeMessageViews(convoID, out.Messages)
	if err != nil {
		return api.MessagePage{}, err
	}
	return api.MessagePage{
		Messages: views,
		Cursor:   out.Cursor,
		Typing:   out.Typing,
	}, nil
}

func (c *Client) ListMessages(ctx context.Context, convoID, cursor string,
	limit int) (api.MessagePage, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return c.getMessages(ctx, convoID, params)
}

// ListMessagesSince asks for messages newer than afterMessageID. The service
// answers InvalidCursor when it no longer knows the position.
func (c *Client) ListMessagesSince(ctx context.Context, convoID,
	afterMessageID string, limit int) (api.MessagePage, error) {
	params := url.Values{"since": {afterMessageID}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	page, err := c.getMessages(ctx, convoID, params)
	page.Cursor = ""
	return page, err
}

func (c *Client) SendMessage(ctx context.Context, convoID,
	text string) (api.Message, error) {
	in := sendMessageInput{ConvoID: convoID}
	in.Message.Text = text
	var out messageView
	if err := c.procedure(ctx, nsidSendMessage, in, &out); err != nil {
		return api.Message{}, err
	}
	return out.toMessage(convoID), nil
}

func (c *Client) DeleteMessageForSelf(ctx context.Context, convoID,
	messageID string) error {
	return c.procedure(ctx, nsidDeleteForSelf,
		messageRefInput{ConvoID: convoID, MessageID: messageID}, nil)
}

func (c *Client) react(ctx context.Context, nsid, convoID, messageID,
	symbol string) (api.Message, error) {
	in := reactionInput{ConvoID: convoID, MessageID: messageID, Value: symbol}
	var out reactionOutput
	if err := c.procedure(ctx, nsid, in, &out); err != nil {
		return api.Message{}, err
	}
	return out.Message.toMessage(convoID), nil
}

func (c *Client) AddReaction(ctx context.Context, convoID, messageID,
	symbol string) (api.Message, error) {
	return c.react(ctx, nsidAddReaction, convoID, messageID, symbol)
}

func (c *Client) RemoveReaction(ctx context.Context, convoID, messageID,
	symbol string) (api.Message, error) {
	return c.react(ctx, nsidRemoveReaction, convoID, messageID, symbol)
}
