////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"sync"

	"gitlab.com/elixxir/ekv"
)

// storeLocks holds one mutex per backing store so that separate KVs opened
// over the same ekv.KeyValue exclude each other.
var storeLocks sync.Map

func storeLock(data ekv.KeyValue) *sync.Mutex {
	m, _ := storeLocks.LoadOrStore(data, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// NewKVWithLockFile creates a KV like NewKV whose Exclusive sections also hold
// an advisory lock on lockPath, for backing stores shared between processes.
func NewKVWithLockFile(data ekv.KeyValue, lockPath string) *KV {
	return &KV{r: &root{data: data, lockPath: lockPath}}
}

// Exclusive runs fn while no other Exclusive section over the same backing
// store is running. Read-modify-write sequences spanning several keys must
// run inside it; ekv only guarantees atomicity per key.
func (v *KV) Exclusive(fn func() error) error {
	mux := storeLock(v.r.data)
	mux.Lock()
	defer mux.Unlock()
	return withFileLock(v.r.lockPath, fn)
}
