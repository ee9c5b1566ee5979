////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package profiles resolves participant identifiers to display profiles
// through an in-process tier backed by a bounded store shared between
// processes.
package profiles

import (
	"strings"
	"time"

	"gitlab.com/elixxir/convsync/api"
)

// DeviceFragmentSeparator starts the device-specific suffix some participant
// identifiers carry.
const DeviceFragmentSeparator = "#"

// Canonicalize strips any device fragment from a participant identifier.
func Canonicalize(id string) string {
	if i := strings.Index(id, DeviceFragmentSeparator); i >= 0 {
		return id[:i]
	}
	return id
}

// Entry is a cached display profile keyed by canonical identifier.
type Entry struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatar,omitempty"`
	CachedAt    time.Time `json:"cachedAt"`
}

func newEntry(p api.Profile, now time.Time) Entry {
	return Entry{
		ID:          Canonicalize(p.DID),
		Handle:      p.Handle,
		DisplayName: p.DisplayName,
		AvatarURL:   p.Avatar,
		CachedAt:    now,
	}
}

// Name returns the display name, falling back to the handle.
func (e Entry) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Handle
}
