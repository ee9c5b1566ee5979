////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import (
	"sync"

	"github.com/golang-collections/collections/queue"
	jww "github.com/spf13/jwalterweatherman"
)

// Inventory holds the key packages this device has published and not yet
// seen consumed, oldest first.
type Inventory struct {
	bundles *queue.Queue
	mux     sync.Mutex
}

// NewInventory creates an Inventory holding the given bundles in order.
func NewInventory(bundles ...Bundle) *Inventory {
	inv := &Inventory{bundles: queue.New()}
	for _, b := range bundles {
		inv.bundles.Enqueue(b)
	}
	return inv
}

// Add appends bundles as the newest entries.
func (inv *Inventory) Add(bundles ...Bundle) {
	inv.mux.Lock()
	defer inv.mux.Unlock()
	for _, b := range bundles {
		inv.bundles.Enqueue(b)
	}
}

// Len returns the number of held bundles.
func (inv *Inventory) Len() int {
	inv.mux.Lock()
	defer inv.mux.Unlock()
	return inv.bundles.Len()
}

// Oldest returns the oldest bundle without removing it.
func (inv *Inventory) Oldest() (Bundle, bool) {
	inv.mux.Lock()
	defer inv.mux.Unlock()
	b := inv.bundles.Peek()
	if b == nil {
		return Bundle{}, false
	}
	return b.(Bundle), true
}

// Take removes and returns the bundle with the given reference.
func (inv *Inventory) Take(hashRef []byte) (Bundle, bool) {
	inv.mux.Lock()
	defer inv.mux.Unlock()

	var (
		found Bundle
		ok    bool
	)
	n := inv.bundles.Len()
	for i := 0; i < n; i++ {
		b := inv.bundles.Dequeue().(Bundle)
		if !ok && b.matches(hashRef) {
			found, ok = b, true
			continue
		}
		inv.bundles.Enqueue(b)
	}
	return found, ok
}

// TrimTo drops the oldest bundles until at most n remain, and returns how
// many were dropped.
func (inv *Inventory) TrimTo(n int) int {
	inv.mux.Lock()
	defer inv.mux.Unlock()
	if n < 0 {
		n = 0
	}
	dropped := 0
	for inv.bundles.Len() > n {
		inv.bundles.Dequeue()
		dropped++
	}
	if dropped > 0 {
		jww.DEBUG.Printf("[MLS] Dropped %d oldest key packages from the "+
			"inventory", dropped)
	}
	return dropped
}

// Clear removes every bundle.
func (inv *Inventory) Clear() {
	inv.mux.Lock()
	defer inv.mux.Unlock()
	for inv.bundles.Len() > 0 {
		inv.bundles.Dequeue()
	}
}

// List returns the held bundles, oldest first.
func (inv *Inventory) List() []Bundle {
	inv.mux.Lock()
	defer inv.mux.Unlock()
	n := inv.bundles.Len()
	out := make([]Bundle, 0, n)
	for i := 0; i < n; i++ {
		b := inv.bundles.Dequeue().(Bundle)
		out = append(out, b)
		inv.bundles.Enqueue(b)
	}
	return out
}
