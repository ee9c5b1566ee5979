////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import (
	"time"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

const (
	storePrefix         = "mls:"
	deviceKey           = "device"
	keyPackagesKey      = "keyPackages"
	currentStoreVersion = 0
)

// deviceRecord is the registered device and its signing key.
type deviceRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SigningKey   []byte    `json:"signingKey"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// loadDevice returns the stored device, or nil if there is none.
func loadDevice(kv *versioned.KV) (*deviceRecord, error) {
	d := &deviceRecord{}
	found, err := kv.GetJSON(deviceKey, currentStoreVersion, d)
	if err != nil {
		return nil, errors.WithMessage(err, "device record")
	}
	if !found {
		return nil, nil
	}
	return d, nil
}

func saveDevice(kv *versioned.KV, d *deviceRecord) error {
	return kv.SetJSON(deviceKey, currentStoreVersion, d)
}

// loadBundles returns the stored inventory, oldest first.
func loadBundles(kv *versioned.KV) ([]Bundle, error) {
	var bundles []Bundle
	if _, err := kv.GetJSON(keyPackagesKey, currentStoreVersion,
		&bundles); err != nil {
		return nil, errors.WithMessage(err, "key packages")
	}
	return bundles, nil
}

func saveBundles(kv *versioned.KV, bundles []Bundle) error {
	return kv.SetJSON(keyPackagesKey, currentStoreVersion, bundles)
}

// clearStorage deletes the device and its inventory.
func clearStorage(kv *versioned.KV) error {
	for _, key := range []string{deviceKey, keyPackagesKey} {
		if err := kv.Delete(key, currentStoreVersion); err != nil {
			return errors.Wrapf(err, "failed to delete %s", key)
		}
	}
	return nil
}
