////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"encoding/json"
	"time"
)

// Params configures the Registry.
type Params struct {
	// PageSize is the number of conversations requested per page.
	PageSize int

	// PollInterval is the period of the conversation list poll.
	PollInterval time.Duration
}

// GetDefaultParams returns the default registry parameters.
func GetDefaultParams() Params {
	return Params{
		PageSize:     50,
		PollInterval: 10 * time.Second,
	}
}

// Marshal returns the JSON form of the Params.
func (p Params) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
