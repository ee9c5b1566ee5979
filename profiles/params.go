////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package profiles

import (
	"encoding/json"
	"time"

	"gitlab.com/elixxir/convsync/api"
)

// Params configures the profile cache.
type Params struct {
	// BatchSize is the number of actors per GetProfiles call. It is clamped to
	// api.MaxProfileBatch.
	BatchSize int

	// FetchRate is the maximum number of batch calls started per second. Zero
	// or less disables pacing.
	FetchRate int

	// SharedCapacity is the number of entries the shared tier keeps after a
	// maintenance pass.
	SharedCapacity int

	// MaintenancePeriod is how often the maintenance service runs.
	MaintenancePeriod time.Duration
}

// GetDefaultParams returns the default profile cache parameters.
func GetDefaultParams() Params {
	return Params{
		BatchSize:         api.MaxProfileBatch,
		FetchRate:         10,
		SharedCapacity:    500,
		MaintenancePeriod: 10 * time.Minute,
	}
}

// Marshal returns the JSON form of the Params.
func (p Params) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func (p Params) batchSize() int {
	if p.BatchSize <= 0 || p.BatchSize > api.MaxProfileBatch {
		return api.MaxProfileBatch
	}
	return p.BatchSize
}
