////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import (
	"encoding/json"
	"time"
)

const (
	// CipherSuiteX25519Ed25519 is MLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519.
	CipherSuiteX25519Ed25519 uint16 = 0x0001

	keyPackageVersion uint16 = 1
)

// Params configures the encrypted session bootstrapper.
type Params struct {
	// DeviceName is sent with the device registration.
	DeviceName string

	// KeyPackageMinimum is how many packages the service must hold before
	// opt-in is allowed.
	KeyPackageMinimum int

	// InitialBatch is how many packages Enable publishes, and the level
	// replenishment tops back up to.
	InitialBatch int

	// ReplenishThreshold is the service-side count below which
	// ReplenishKeyPackages publishes more packages.
	ReplenishThreshold int

	// KeyPackageLifetime is the validity window written into each package.
	KeyPackageLifetime time.Duration
}

// GetDefaultParams returns a Params object containing the default parameters.
func GetDefaultParams() Params {
	return Params{
		DeviceName:         "convsync",
		KeyPackageMinimum:  10,
		InitialBatch:       20,
		ReplenishThreshold: 10,
		KeyPackageLifetime: 90 * 24 * time.Hour,
	}
}

// Marshal returns the JSON encoding of the Params.
func (p Params) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
