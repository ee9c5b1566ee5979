////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package xrpc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/thedevsaddam/gojsonq"

	"gitlab.com/elixxir/convsync/api"
)

// Method identifiers.
const (
	nsidListConvos         = "chat.bsky.convo.listConvos"
	nsidMuteConvo          = "chat.bsky.convo.muteConvo"
	nsidUnmuteConvo        = "chat.bsky.convo.unmuteConvo"
	nsidLeaveConvo         = "chat.bsky.convo.leaveConvo"
	nsidAcceptConvo        = "chat.bsky.convo.acceptConvo"
	nsidUpdateRead         = "chat.bsky.convo.updateRead"
	nsidUpdateAllRead      = "chat.bsky.convo.updateAllRead"
	nsidGetMessages        = "chat.bsky.convo.getMessages"
	nsidSendMessage        = "chat.bsky.convo.sendMessage"
	nsidDeleteForSelf      = "chat.bsky.convo.deleteMessageForSelf"
	nsidAddReaction        = "chat.bsky.convo.addReaction"
	nsidRemoveReaction     = "chat.bsky.convo.removeReaction"
	nsidGetConvoAdmins     = "blue.catbird.convo.getAdmins"
	nsidGetActorMetadata   = "chat.bsky.moderation.getActorMetadata"
	nsidGetMessageContext  = "chat.bsky.moderation.getMessageContext"
	nsidUpdateActorAccess  = "chat.bsky.moderation.updateActorAccess"
	nsidGetProfiles        = "app.bsky.actor.getProfiles"
	nsidRegisterDevice     = "blue.catbird.mls.registerDevice"
	nsidPublishKeyPackages = "blue.catbird.mls.publishKeyPackages"
	nsidGetKeyPackageStats = "blue.catbird.mls.getKeyPackageStats"
	nsidOptIn              = "blue.catbird.mls.optIn"
	nsidOptOut             = "blue.catbird.mls.optOut"
	nsidGetOptInStatus     = "blue.catbird.mls.getOptInStatus"
)

// Message union discriminators. Only the fragment is compared so the
// namespace may move without breaking decoding.
const (
	typeMessageView        = "#messageView"
	typeDeletedMessageView = "#deletedMessageView"
)

// Conversation lane names on the wire.
const (
	statusAccepted = "accepted"
	statusRequest  = "request"
)

type actorRef struct {
	DID string `json:"did"`
}

type reactionView struct {
	Value  string   `json:"value"`
	Sender actorRef `json:"sender"`
}

type embedView struct {
	Record struct {
		URI string `json:"uri"`
		CID string `json:"cid,omitempty"`
	} `json:"record"`
}

type messageView struct {
	ID        string         `json:"id"`
	Rev       string         `json:"rev"`
	Text      string         `json:"text"`
	Sender    actorRef       `json:"sender"`
	SentAt    time.Time      `json:"sentAt"`
	Reactions []reactionView `json:"reactions,omitempty"`
	ReplyTo   string         `json:"replyTo,omitempty"`
	Embed     *embedView     `json:"embed,omitempty"`
}

type deletedMessageView struct {
	ID     string    `json:"id"`
	Rev    string    `json:"rev"`
	Sender actorRef  `json:"sender"`
	SentAt time.Time `json:"sentAt"`
}

type convoView struct {
	ID          string          `json:"id"`
	Rev         string          `json:"rev"`
	Members     []actorRef      `json:"members"`
	LastMessage json.RawMessage `json:"lastMessage,omitempty"`
	UnreadCount int             `json:"unreadCount"`
	Muted       bool            `json:"muted"`
	Status      string          `json:"status"`
}

type listConvosOutput struct {
	Cursor string      `json:"cursor,omitempty"`
	Convos []convoView `json:"convos"`
}

type getMessagesOutput struct {
	Cursor   string            `json:"cursor,omitempty"`
	Messages []json.RawMessage `json:"messages"`
	Typing   []string          `json:"typing,omitempty"`
}

type convoInput struct {
	ConvoID string `json:"convoId"`
}

type messageRefInput struct {
	ConvoID   string `json:"convoId"`
	MessageID string `json:"messageId,omitempty"`
}

type reactionInput struct {
	ConvoID   string `json:"convoId"`
	MessageID string `json:"messageId"`
	Value     string `json:"value"`
}

type reactionOutput struct {
	Message messageView `json:"message"`
}

type sendMessageInput struct {
	ConvoID string `json:"convoId"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

func (v messageView) toMessage(convoID string) api.Message {
	m := api.Message{
		ID:             v.ID,
		ConversationID: convoID,
		Rev:            v.Rev,
		SenderID:       v.Sender.DID,
		Text:           v.Text,
		SentAt:         v.SentAt,
		ReplyTo:        v.ReplyTo,
	}
	for _, r := range v.Reactions {
		m.Reactions = append(m.Reactions, api.Reaction{
			MessageID: v.ID,
			ReactorID: r.Sender.DID,
			Symbol:    r.Value,
		})
	}
	if v.Embed != nil && v.Embed.Record.URI != "" {
		m.Embed = &api.Embed{URI: v.Embed.Record.URI, CID: v.Embed.Record.CID}
	}
	return m
}

func (v deletedMessageView) toDeleted(convoID string) api.DeletedMessage {
	return api.DeletedMessage{
		ID:             v.ID,
		ConversationID: convoID,
		Rev:            v.Rev,
		SenderID:       v.Sender.DID,
		SentAt:         v.SentAt,
	}
}

// payloadType returns the union discriminator of a raw payload, or an empty
// string if it has none.
func payloadType(raw json.RawMessage) (string, error) {
	if !json.Valid(raw) {
		return "", errors.New("message payload is not valid JSON")
	}
	t, _ := gojsonq.New().FromString(string(raw)).Find("$type").(string)
	return t, nil
}

// decodeMessageView decodes one element of a message union. Payloads of an
// unrecognised type become unknown views rather than errors.
func decodeMessageView(convoID string, raw json.RawMessage) (api.MessageView, error) {
	t, err := payloadType(raw)
	if err != nil {
		return api.MessageView{}, err
	}

	switch {
	case strings.HasSuffix(t, typeMessageView):
		var v messageView
		if err = json.Unmarshal(raw, &v); err != nil {
			return api.MessageView{}, errors.Wrap(err, "failed to decode message")
		}
		return api.NewTextView(v.toMessage(convoID)), nil
	case strings.HasSuffix(t, typeDeletedMessageView):
		var v deletedMessageView
		if err = json.Unmarshal(raw, &v); err != nil {
			return api.MessageView{}, errors.Wrap(err,
				"failed to decode deleted message")
		}
		return api.NewDeletedView(v.toDeleted(convoID)), nil
	default:
		jww.DEBUG.Printf("[XRPC] Keeping payload of unknown type %q", t)
		return api.NewUnknownView(api.UnknownPayload{
			Type: t,
			Raw:  append(json.RawMessage(nil), raw...),
		}), nil
	}
}

func decodeMessageViews(convoID string,
	raws []json.RawMessage) ([]api.MessageView, error) {
	views := make([]api.MessageView, 0, len(raws))
	for _, raw := range raws {
		v, err := decodeMessageView(convoID, raw)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (v convoView) toConversation() (api.Conversation, error) {
	c := api.Conversation{
		ID:          v.ID,
		Rev:         v.Rev,
		UnreadCount: v.UnreadCount,
		Muted:       v.Muted,
		Status:      api.StatusAccepted,
	}
	if v.Status == statusRequest {
		c.Status = api.StatusRequest
	}
	for _, m := range v.Members {
		c.Members = append(c.Members, m.DID)
	}

	if len(v.LastMessage) > 0 && string(v.LastMessage) != "null" {
		last, err := decodeMessageView(v.ID, v.LastMessage)
		if err != nil {
			return api.Conversation{}, errors.WithMessagef(err,
				"conversation %s", v.ID)
		}
		switch last.Kind {
		case api.KindText:
			c.LastMessage = last.Text.Summary()
		case api.KindDeleted:
			c.LastMessage = &api.MessageSummary{
				ID:       last.Deleted.ID,
				SenderID: last.Deleted.SenderID,
				SentAt:   last.Deleted.SentAt,
				Deleted:  true,
			}
		}
	}
	return c, nil
}

func statusParam(s api.ConversationStatus) string {
	if s == api.StatusRequest {
		return statusRequest
	}
	return statusAccepted
}
