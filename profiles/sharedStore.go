////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package profiles

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/stoppable"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

const (
	sharedStorePrefix         = "profileCache"
	entryKeyPrefix            = "profile:"
	indexKey                  = "profileIndex"
	currentSharedStoreVersion = 0
)

var errNoEntry = errors.New("no shared entry stored")

// SharedStore is the persistent profile tier. It is bounded to a capacity by
// its maintenance pass and may be opened by several processes over the same
// backing store. Nothing is held in memory between calls, so every call sees
// the writes of other processes. Index updates run inside the KV's Exclusive
// section, which spans processes when the KV was opened with a lock file.
type SharedStore struct {
	kv       *versioned.KV
	capacity int
}

// NewSharedStore opens the shared tier inside the given KV.
func NewSharedStore(kv *versioned.KV, capacity int) (*SharedStore, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("invalid shared profile capacity %d", capacity)
	}
	kv, err := kv.Prefix(sharedStorePrefix)
	if err != nil {
		return nil, err
	}
	return &SharedStore{kv: kv, capacity: capacity}, nil
}

// Capacity returns the maximum number of entries kept after maintenance.
func (s *SharedStore) Capacity() int {
	return s.capacity
}

// Get returns the entry for a canonical identifier. Entries that fail to load
// are removed.
func (s *SharedStore) Get(id string) (Entry, bool) {
	e, err := s.loadEntry(id)
	if err == nil {
		return e, true
	}
	if !errors.Is(err, errNoEntry) {
		// Another handle may have rewritten the entry since it was read
		_ = s.kv.Exclusive(func() error {
			if _, err = s.loadEntry(id); err != nil &&
				!errors.Is(err, errNoEntry) {
				jww.WARN.Printf("[Profiles] Discarding unreadable shared "+
					"entry %s: %+v", id, err)
				s.deleteEntry(id)
			}
			return nil
		})
	}
	return Entry{}, false
}

// Put writes entries to the store and runs maintenance if the store grew
// beyond its capacity.
func (s *SharedStore) Put(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.kv.Exclusive(func() error {
		index := s.loadIndex()
		for _, e := range entries {
			err := s.kv.SetJSON(makeEntryKey(e.ID), currentSharedStoreVersion,
				&e)
			if err != nil {
				return err
			}
			index[e.ID] = e.CachedAt
		}

		if len(index) > s.capacity {
			_, err := s.maintain(index)
			return err
		}
		return s.saveIndex(index)
	})
}

// Len returns the number of indexed entries.
func (s *SharedStore) Len() int {
	n := 0
	_ = s.kv.Exclusive(func() error {
		n = len(s.loadIndex())
		return nil
	})
	return n
}

// Maintain drops entries that are missing or fail to deserialize, then evicts
// the oldest entries by cache timestamp until the store is within capacity.
// Returns the number of entries removed.
func (s *SharedStore) Maintain() (int, error) {
	removed := 0
	err := s.kv.Exclusive(func() error {
		var err error
		removed, err = s.maintain(s.loadIndex())
		return err
	})
	return removed, err
}

func (s *SharedStore) maintain(index map[string]time.Time) (int, error) {
	removed := 0
	live := make([]Entry, 0, len(index))
	for id := range index {
		e, err := s.loadEntry(id)
		if err != nil {
			jww.WARN.Printf("[Profiles] Dropping shared entry %s: %+v", id, err)
			s.deleteEntry(id)
			delete(index, id)
			removed++
			continue
		}
		live = append(live, e)
	}

	if excess := len(live) - s.capacity; excess > 0 {
		sort.Slice(live, func(i, j int) bool {
			if !live[i].CachedAt.Equal(live[j].CachedAt) {
				return live[i].CachedAt.Before(live[j].CachedAt)
			}
			return live[i].ID < live[j].ID
		})
		for _, e := range live[:excess] {
			s.deleteEntry(e.ID)
			delete(index, e.ID)
		}
		removed += excess
		jww.DEBUG.Printf("[Profiles] Evicted %d shared entries over "+
			"capacity %d", excess, s.capacity)
	}

	if err := s.saveIndex(index); err != nil {
		return removed, err
	}
	return removed, nil
}

// StartMaintenance runs Maintain every period until the returned stoppable is
// closed. Closing it runs one last pass.
func (s *SharedStore) StartMaintenance(period time.Duration) stoppable.Stoppable {
	stop := stoppable.NewSingle("ProfileCacheMaintenance")
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop.Quit():
				stop.ToStopped()
				return
			case <-ticker.C:
				s.maintenancePass()
			}
		}
	}()
	return stoppable.NewCleanup(stop, func() error {
		s.maintenancePass()
		return nil
	})
}

func (s *SharedStore) maintenancePass() {
	if n, err := s.Maintain(); err != nil {
		jww.ERROR.Printf("[Profiles] Maintenance failed: %+v", err)
	} else if n > 0 {
		jww.INFO.Printf("[Profiles] Maintenance removed %d entries", n)
	}
}

func (s *SharedStore) loadEntry(id string) (Entry, error) {
	var e Entry
	found, err := s.kv.GetJSON(makeEntryKey(id), currentSharedStoreVersion, &e)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, errors.Wrap(errNoEntry, id)
	}
	if e.ID != id {
		return Entry{}, errors.Errorf("entry stored under %s is for %s",
			id, e.ID)
	}
	return e, nil
}

func (s *SharedStore) deleteEntry(id string) {
	err := s.kv.Delete(makeEntryKey(id), currentSharedStoreVersion)
	if err != nil {
		jww.WARN.Printf("[Profiles] Failed to delete shared entry %s: %+v",
			id, err)
	}
}

// loadIndex returns the stored index, or an empty one if it is missing or
// unreadable. Entries only reachable through a lost index are orphaned.
func (s *SharedStore) loadIndex() map[string]time.Time {
	index := make(map[string]time.Time)
	if _, err := s.kv.GetJSON(indexKey, currentSharedStoreVersion,
		&index); err != nil {
		jww.WARN.Printf("[Profiles] Resetting unreadable shared index: %+v",
			err)
		return make(map[string]time.Time)
	}
	return index
}

func (s *SharedStore) saveIndex(index map[string]time.Time) error {
	return s.kv.SetJSON(indexKey, currentSharedStoreVersion, index)
}

func makeEntryKey(id string) string {
	return entryKeyPrefix + id
}
