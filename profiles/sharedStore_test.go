////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package profiles

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/convsync/stoppable"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

func makeEntries(n int, base time.Time) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			ID:       fmt.Sprintf("did:example:%03d", i),
			Handle:   fmt.Sprintf("user%03d", i),
			CachedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return entries
}

// Tests that inserting 600 entries into a store capped at 500 leaves the 500
// newest.
func TestSharedStore_Put_Bounded(t *testing.T) {
	s, err := NewSharedStore(versioned.NewKV(ekv.MakeMemstore()), 500)
	require.NoError(t, err)

	entries := makeEntries(600, time.Unix(1000, 0))
	require.NoError(t, s.Put(entries...))
	require.Equal(t, 500, s.Len())

	for i, e := range entries {
		_, exists := s.Get(e.ID)
		if i < 100 && exists {
			t.Errorf("Old entry %s (%d) was not evicted.", e.ID, i)
		} else if i >= 100 && !exists {
			t.Errorf("New entry %s (%d) was evicted.", e.ID, i)
		}
	}
}

// Tests that entries inserted one at a time are bounded the same way.
func TestSharedStore_Put_Incremental(t *testing.T) {
	s, err := NewSharedStore(versioned.NewKV(ekv.MakeMemstore()), 20)
	require.NoError(t, err)

	entries := makeEntries(30, time.Unix(1000, 0))
	for _, e := range entries {
		require.NoError(t, s.Put(e))
	}
	require.Equal(t, 20, s.Len())
	_, exists := s.Get(entries[9].ID)
	require.False(t, exists)
	_, exists = s.Get(entries[10].ID)
	require.True(t, exists)
}

// Tests that maintenance drops entries that fail to deserialize.
func TestSharedStore_Maintain_Corrupt(t *testing.T) {
	s, err := NewSharedStore(versioned.NewKV(ekv.MakeMemstore()), 10)
	require.NoError(t, err)

	entries := makeEntries(3, time.Unix(1000, 0))
	require.NoError(t, s.Put(entries...))

	err = s.kv.Set(makeEntryKey(entries[1].ID),
		versioned.NewObject(currentSharedStoreVersion, []byte("not json")))
	require.NoError(t, err)

	removed, err := s.Maintain()
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 2, s.Len())
	_, exists := s.Get(entries[1].ID)
	require.False(t, exists)
}

// Tests that the maintenance service stops cleanly and that stopping it runs
// a final pass.
func TestSharedStore_StartMaintenance(t *testing.T) {
	s, err := NewSharedStore(versioned.NewKV(ekv.MakeMemstore()), 10)
	require.NoError(t, err)

	entries := makeEntries(2, time.Unix(1000, 0))
	require.NoError(t, s.Put(entries...))

	stop := s.StartMaintenance(time.Hour)
	require.NoError(t, s.kv.Set(makeEntryKey(entries[0].ID),
		versioned.NewObject(currentSharedStoreVersion, []byte("not json"))))

	require.NoError(t, stop.Close())
	require.NoError(t, stoppable.WaitForStopped(stop, time.Second))
	require.Equal(t, 1, s.Len())
}

// Tests that two handles over one backing store writing concurrently keep
// every entry in the index.
func TestSharedStore_Put_ConcurrentHandles(t *testing.T) {
	mem := ekv.MakeMemstore()
	lockPath := filepath.Join(t.TempDir(), "shared.lock")
	a, err := NewSharedStore(versioned.NewKVWithLockFile(mem, lockPath), 1000)
	require.NoError(t, err)
	b, err := NewSharedStore(versioned.NewKVWithLockFile(mem, lockPath), 1000)
	require.NoError(t, err)

	entries := makeEntries(200, time.Unix(1000, 0))
	var wg sync.WaitGroup
	for i, s := range []*SharedStore{a, b} {
		wg.Add(1)
		go func(s *SharedStore, batch []Entry) {
			defer wg.Done()
			for _, e := range batch {
				require.NoError(t, s.Put(e))
			}
		}(s, entries[i*100:(i+1)*100])
	}
	wg.Wait()

	require.Equal(t, 200, a.Len())
	require.Equal(t, 200, b.Len())
	for _, e := range entries {
		_, exists := a.Get(e.ID)
		require.True(t, exists, e.ID)
	}

	// Shrinking through a third handle reaches every entry
	c, err := NewSharedStore(versioned.NewKV(mem), 50)
	require.NoError(t, err)
	removed, err := c.Maintain()
	require.NoError(t, err)
	require.Equal(t, 150, removed)
	require.Equal(t, 50, a.Len())
}
