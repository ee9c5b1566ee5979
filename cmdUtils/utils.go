////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmdUtils

import (
	"fmt"
	"strings"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/messages"
	"gitlab.com/elixxir/convsync/profiles"
)

// FormatConversation renders one conversation line, naming members by their
// cached profile when one is known.
func FormatConversation(c api.Conversation, cache *profiles.Cache,
	selfID string) string {
	names := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m == selfID {
			continue
		}
		if e, exists := cache.Get(m); exists {
			names = append(names, e.Name())
		} else {
			names = append(names, m)
		}
	}

	line := fmt.Sprintf("%s [%s]", c.ID, strings.Join(names, ", "))
	if c.UnreadCount > 0 {
		line += fmt.Sprintf(" (%d unread)", c.UnreadCount)
	}
	if c.Muted {
		line += " (muted)"
	}
	if c.LastMessage != nil {
		if c.LastMessage.Deleted {
			line += ": <deleted>"
		} else {
			line += ": " + c.LastMessage.Text
		}
	}
	return line
}

// FormatEntry renders one message cache entry.
func FormatEntry(e messages.Entry) string {
	m := e.Message
	line := fmt.Sprintf("[%s] %s %s: %s", m.SentAt.Format("15:04:05"),
		e.Key(), m.SenderID, m.Text)
	if e.State == messages.Pending {
		line += " (sending)"
	}
	if e.Tombstoned {
		line += " (deleting)"
	}
	for _, r := range m.Reactions {
		line += fmt.Sprintf(" %s", r.Symbol)
	}
	return line
}
