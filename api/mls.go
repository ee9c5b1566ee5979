////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import "time"

// DeviceRegistration is what a device sends when registering for the
// encrypted messaging mode.
type DeviceRegistration struct {
	DeviceName   string `json:"deviceName"`
	SignatureKey []byte `json:"signatureKey"`
}

// Device is the service's record of a registered device.
type Device struct {
	ID           string    `json:"deviceId"`
	Name         string    `json:"deviceName"`
	SignatureKey []byte    `json:"signatureKey"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// PublishedKeyPackage is a serialized one-time key package as uploaded.
type PublishedKeyPackage struct {
	Data    []byte `json:"keyPackage"`
	HashRef []byte `json:"hashRef"`
}

// PublishResult is the service's response to a key package upload.
type PublishResult struct {
	// Published is how many packages from this upload were stored.
	Published int `json:"published"`

	// Available is how many unused packages the service now holds for the
	// device.
	Available int `json:"available"`
}

// OptInStatus is the server-side availability of an account for encrypted
// messaging.
type OptInStatus struct {
	Enabled  bool   `json:"optedIn"`
	DeviceID string `json:"deviceId,omitempty"`
}
