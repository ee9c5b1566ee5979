////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package event

// Callback receives reported events.
type Callback func(priority int, category, evtType, details string)

// Reporter is the reporting API used by the sync components.
type Reporter interface {
	Report(priority int, category, evtType, details string)
}

// Event priorities.
const (
	Debug = iota
	Info
	Warning
	Error
)

// Event categories, one per component.
const (
	CategoryRegistry  = "ConversationRegistry"
	CategorySync      = "MessageSync"
	CategoryReactions = "Reactions"
	CategoryProfiles  = "Profiles"
	CategoryMLS       = "EncryptedSession"
)

// Discard is a Reporter that drops every event.
type Discard struct{}

// Report does nothing.
func (Discard) Report(int, string, string, string) {}
