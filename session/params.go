////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"encoding/json"

	"gitlab.com/elixxir/convsync/api/xrpc"
	"gitlab.com/elixxir/convsync/conversations"
	"gitlab.com/elixxir/convsync/messages"
	"gitlab.com/elixxir/convsync/mls"
	"gitlab.com/elixxir/convsync/profiles"
)

// Params holds the parameters of every component of a Session.
type Params struct {
	Transport     xrpc.Params
	Conversations conversations.Params
	Messages      messages.Params
	Profiles      profiles.Params
	MLS           mls.Params

	// EventQueueSize is the number of undelivered events held before new
	// ones are dropped.
	EventQueueSize int
}

// GetDefaultParams returns a Params object containing the default parameters.
func GetDefaultParams() Params {
	return Params{
		Transport:      xrpc.GetDefaultParams(),
		Conversations:  conversations.GetDefaultParams(),
		Messages:       messages.GetDefaultParams(),
		Profiles:       profiles.GetDefaultParams(),
		MLS:            mls.GetDefaultParams(),
		EventQueueSize: 1000,
	}
}

// GetParameters returns the default Params, or overrides them with the given
// JSON, if set.
func GetParameters(params string) (Params, error) {
	p := GetDefaultParams()
	if len(params) > 0 {
		err := json.Unmarshal([]byte(params), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}

// Marshal returns the JSON encoding of the Params.
func (p Params) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
