////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messages

import (
	"encoding/json"
	"time"
)

// Params configures the Synchronizer.
type Params struct {
	// PageSize is the number of messages requested per page and per
	// incremental fetch.
	PageSize int

	// PollInterval is the period of each conversation's message poll.
	PollInterval time.Duration

	// TypingTTL is how long a member stays in the typing set after the
	// service last reported them.
	TypingTTL time.Duration
}

// GetDefaultParams returns the default synchronizer parameters.
func GetDefaultParams() Params {
	return Params{
		PageSize:     50,
		PollInterval: 3 * time.Second,
		TypingTTL:    10 * time.Second,
	}
}

// Marshal returns the JSON form of the Params.
func (p Params) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
