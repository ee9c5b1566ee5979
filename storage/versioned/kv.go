////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package versioned stores versioned, timestamped records on top of an
// ekv.KeyValue. Components prefix the KV with their own namespace so that the
// same backing store can hold settings, key material and cached profiles.
package versioned

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

// PrefixSeparator separates nested prefixes.
const PrefixSeparator = "/"

// ErrCorrupt is returned by GetJSON when a stored record cannot be decoded.
var ErrCorrupt = errors.New("stored record is corrupt")

type root struct {
	data     ekv.KeyValue
	lockPath string
}

// KV stores versioned data under an optional prefix.
type KV struct {
	r      *root
	prefix string
}

// NewKV creates a versioned key/value store backed by something implementing
// ekv.KeyValue.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{r: &root{data: data}}
}

// Get gets the object stored at the key and version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("get %p with key %v", v.r.data, key)

	result := Object{}
	if err := v.r.data.Get(key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set upserts new data into the storage. The version stored in the Object is
// part of the key.
func (v *KV) Set(key string, object *Object) error {
	key = v.makeKey(key, object.Version)
	jww.TRACE.Printf("set %p with key %v", v.r.data, key)
	return v.r.data.Set(key, object)
}

// Delete removes a given key from the data store. Deleting a missing key is
// not an error.
func (v *KV) Delete(key string, version uint64) error {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("delete %p with key %v", v.r.data, key)
	if err := v.r.data.Delete(key); err != nil && ekv.Exists(err) {
		return err
	}
	return nil
}

// SetJSON stores the JSON encoding of record at the key and version.
func (v *KV) SetJSON(key string, version uint64, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", key)
	}
	if err = v.Set(key, NewObject(version, data)); err != nil {
		return errors.Wrapf(err, "failed to store %s", key)
	}
	return nil
}

// GetJSON decodes the record stored at the key and version into record.
// Returns false with no error if nothing is stored there. A record that does
// not decode returns an error wrapping ErrCorrupt.
func (v *KV) GetJSON(key string, version uint64,
	record interface{}) (bool, error) {
	obj, err := v.Get(key, version)
	if err != nil {
		if !ekv.Exists(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to load %s", key)
	}
	if err = json.Unmarshal(obj.Data, record); err != nil {
		return false, errors.Wrapf(ErrCorrupt, "%s: %v", key, err)
	}
	return true, nil
}

// Prefix returns a new KV with the new prefix appended to the current one.
func (v *KV) Prefix(prefix string) (*KV, error) {
	if prefix == "" {
		return nil, errors.New("cannot prefix a KV with an empty string")
	}
	return &KV{
		r:      v.r,
		prefix: v.prefix + prefix + PrefixSeparator,
	}, nil
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}

// Exists returns false if the error indicates the element doesn't exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}
