////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package settings is the explicit per-account settings store. It is passed
// to the components that need it instead of living in process-wide state.
package settings

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/storage/versioned"
)

const (
	storePrefix         = "settings:"
	settingsKey         = "accountSettings"
	currentStoreVersion = 0
)

// settingsDisk is the stored form of the account settings.
type settingsDisk struct {
	OptedIn      bool            `json:"optedIn"`
	Experimental map[string]bool `json:"experimental,omitempty"`
}

// Store holds the settings of a single account.
type Store struct {
	account string
	data    settingsDisk
	kv      *versioned.KV
	mux     sync.RWMutex
}

// NewStore loads the settings of the account from the KV, or starts with
// defaults if none are stored.
func NewStore(kv *versioned.KV, account string) (*Store, error) {
	if account == "" {
		return nil, errors.New("settings require an account identifier")
	}
	kv, err := kv.Prefix(storePrefix + account)
	if err != nil {
		return nil, err
	}

	s := &Store{account: account, kv: kv}

	found, err := kv.GetJSON(settingsKey, currentStoreVersion, &s.data)
	if err != nil {
		return nil, errors.WithMessagef(err, "settings for %s", account)
	}
	if !found {
		jww.DEBUG.Printf("[Settings] No stored settings for %s", account)
	}
	return s, nil
}

// Account returns the account the store belongs to.
func (s *Store) Account() string {
	return s.account
}

// OptedIn returns the locally persisted encrypted-messaging opt-in flag.
func (s *Store) OptedIn() bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.data.OptedIn
}

// SetOptedIn persists the opt-in flag. On a storage failure the previous
// value is kept.
func (s *Store) SetOptedIn(optedIn bool) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	old := s.data.OptedIn
	s.data.OptedIn = optedIn
	if err := s.save(); err != nil {
		s.data.OptedIn = old
		return err
	}
	return nil
}

// Experimental returns whether the named experimental toggle is on.
func (s *Store) Experimental(name string) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.data.Experimental[name]
}

// SetExperimental sets and persists an experimental toggle.
func (s *Store) SetExperimental(name string, enabled bool) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.data.Experimental == nil {
		s.data.Experimental = make(map[string]bool)
	}
	old, had := s.data.Experimental[name]
	s.data.Experimental[name] = enabled
	if err := s.save(); err != nil {
		if had {
			s.data.Experimental[name] = old
		} else {
			delete(s.data.Experimental, name)
		}
		return err
	}
	return nil
}

// ExperimentalToggles returns the names of every enabled toggle, sorted.
func (s *Store) ExperimentalToggles() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	names := make([]string, 0, len(s.data.Experimental))
	for name, on := range s.data.Experimental {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// save writes the settings to storage. Must be called under the write lock.
func (s *Store) save() error {
	return s.kv.SetJSON(settingsKey, currentStoreVersion, &s.data)
}
