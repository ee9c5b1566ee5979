////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messages

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/metrics"
)

// SendMessage shows the message in the cache as pending right away, then sends
// it. On success the pending entry becomes the confirmed message; on failure
// it is removed. Text without visible content is refused without a request.
// Returns true if the service accepted the message.
func (s *Synchronizer) SendMessage(ctx context.Context, convoID,
	text string) bool {
	if err := ValidateText(text); err != nil {
		jww.DEBUG.Printf("[Sync] Not sending to %s: %+v", convoID, err)
		return false
	}
	if convoID == "" {
		jww.DEBUG.Printf("[Sync] Not sending: %+v", ErrMissingIdentifier)
		return false
	}

	marker := uuid.NewString()
	s.mux.Lock()
	c := s.cacheLocked(convoID, true)
	c.entries = append(c.entries, Entry{
		State:     Pending,
		PendingID: marker,
		Message: api.Message{
			ConversationID: convoID,
			SenderID:       s.convos.SelfID(),
			Text:           text,
			SentAt:         netTime.Now(),
		},
	})
	c.sort()
	s.mux.Unlock()
	s.notify(convoID)

	msg, err := s.client.SendMessage(ctx, convoID, text)

	s.mux.Lock()
	c = s.cacheLocked(convoID, false)
	if c != nil {
		c.removePending(marker)
		if err == nil {
			c.upsert(msg)
			c.sort()
		}
	}
	s.mux.Unlock()
	s.notify(convoID)

	if err != nil {
		metrics.Rollbacks.WithLabelValues("send").Inc()
		if err = s.fail(err, "send to %s", convoID); err != nil {
			s.events.Report(event.Warning, event.CategorySync, "SendFailed",
				convoID)
		}
		return false
	}

	jww.DEBUG.Printf("[Sync] Sent %s to %s", msg.ID, convoID)
	s.convos.ApplyLastMessage(convoID, msg)
	return true
}

// DeleteMessageForSelf tombstones the message right away, then confirms with
// the service. The tombstone is lifted if the service call fails.
func (s *Synchronizer) DeleteMessageForSelf(ctx context.Context, convoID,
	messageID string) error {
	if convoID == "" || messageID == "" {
		return ErrMissingIdentifier
	}

	s.mux.Lock()
	c := s.cacheLocked(convoID, false)
	i := -1
	if c != nil {
		i = c.find(messageID)
	}
	if i < 0 {
		s.mux.Unlock()
		return errors.Wrapf(ErrUnknownMessage, "%s in %s", messageID, convoID)
	}
	if c.entries[i].Tombstoned {
		s.mux.Unlock()
		return nil
	}
	c.entries[i].Tombstoned = true
	s.mux.Unlock()
	s.notify(convoID)

	err := s.client.DeleteMessageForSelf(ctx, convoID, messageID)
	if err == nil {
		jww.DEBUG.Printf("[Sync] Deleted %s in %s for self", messageID, convoID)
		return nil
	}

	s.mux.Lock()
	if c = s.cacheLocked(convoID, false); c != nil {
		if i = c.find(messageID); i >= 0 {
			c.entries[i].Tombstoned = false
		}
	}
	s.mux.Unlock()
	s.notify(convoID)

	metrics.Rollbacks.WithLabelValues("delete").Inc()
	return s.fail(err, "delete %s in %s", messageID, convoID)
}
