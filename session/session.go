////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package session wires the sync components for one account into a single
// handle and owns their long-running goroutines.
package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/crypto/fastRNG"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/crypto/csprng"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/api/xrpc"
	"gitlab.com/elixxir/convsync/conversations"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/messages"
	"gitlab.com/elixxir/convsync/mls"
	"gitlab.com/elixxir/convsync/profiles"
	"gitlab.com/elixxir/convsync/reactions"
	"gitlab.com/elixxir/convsync/settings"
	"gitlab.com/elixxir/convsync/stoppable"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

const (
	servicesStoppableName = "SessionServices"

	accountStorageDir = "account"
	sharedStorageDir  = "shared"
	lockFileSuffix    = ".lock"
)

// Session holds every component for one account.
type Session struct {
	account string
	params  Params
	client  api.Client

	rng    *fastRNG.StreamGenerator
	events *event.Manager

	settings       *settings.Store
	sharedProfiles *profiles.SharedStore
	profiles       *profiles.Cache
	registry       *conversations.Registry
	sync           *messages.Synchronizer
	reactions      *reactions.Coordinator
	mls            *mls.Bootstrapper

	services *stoppable.Multi
	started  bool
	stopped  bool
	mux      sync.Mutex
}

// Open connects to the service at serviceURL as account and stores state
// under storageDir. The shared profile tier lives in its own directory so
// other processes can open it.
func Open(serviceURL, token, account, storageDir, password string,
	params Params) (*Session, error) {
	client, err := xrpc.NewClient(serviceURL, token, nil, params.Transport)
	if err != nil {
		return nil, err
	}

	accountKV, err := OpenStorage(
		filepath.Join(storageDir, accountStorageDir), password)
	if err != nil {
		return nil, err
	}
	sharedKV, err := OpenStorage(
		filepath.Join(storageDir, sharedStorageDir), password)
	if err != nil {
		return nil, err
	}

	return New(client, account, accountKV, sharedKV, params)
}

// OpenStorage opens, or creates, an encrypted file store. Exclusive sections
// on the returned KV lock the file dir+".lock" beside the store, so processes
// sharing the directory serialize their multi-key updates.
func OpenStorage(dir, password string) (*versioned.KV, error) {
	fs, err := ekv.NewFilestore(dir, password)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"failed to open storage in %s", dir)
	}
	return versioned.NewKVWithLockFile(fs, filepath.Clean(dir)+lockFileSuffix),
		nil
}

// New wires the components for account over client. accountKV holds the
// account's settings and key material; sharedKV holds the shared profile
// tier.
func New(client api.Client, account string, accountKV,
	sharedKV *versioned.KV, params Params) (*Session, error) {
	if account == "" {
		return nil, errors.New("a session requires an account identifier")
	}

	s := &Session{
		account:  account,
		params:   params,
		client:   client,
		rng:      fastRNG.NewStreamGenerator(12, 1024, csprng.NewSystemRNG),
		events:   event.NewManager(params.EventQueueSize),
		services: stoppable.NewMulti(servicesStoppableName),
	}

	var err error
	if s.settings, err = settings.NewStore(accountKV, account); err != nil {
		return nil, err
	}

	s.sharedProfiles, err = profiles.NewSharedStore(sharedKV,
		params.Profiles.SharedCapacity)
	if err != nil {
		return nil, err
	}
	s.profiles = profiles.NewCache(s.sharedProfiles, params.Profiles)

	s.registry = conversations.NewRegistry(client, s.profiles, account,
		s.events, params.Conversations)
	s.sync = messages.NewSynchronizer(client, s.registry, s.events,
		params.Messages)
	s.reactions = reactions.NewCoordinator(client, s.sync, account, s.events,
		s.sync.Errors())

	s.mls, err = mls.NewBootstrapper(client, s.settings, accountKV, s.rng,
		s.events, params.MLS)
	if err != nil {
		return nil, err
	}

	jww.INFO.Printf("[Session] Opened session for %s", account)
	return s, nil
}

// Account returns the account the session acts as.
func (s *Session) Account() string { return s.account }

// Client returns the service client.
func (s *Session) Client() api.Client { return s.client }

// Events returns the event manager.
func (s *Session) Events() *event.Manager { return s.events }

// Settings returns the account settings.
func (s *Session) Settings() *settings.Store { return s.settings }

// Profiles returns the profile cache.
func (s *Session) Profiles() *profiles.Cache { return s.profiles }

// SharedProfiles returns the shared profile tier.
func (s *Session) SharedProfiles() *profiles.SharedStore { return s.sharedProfiles }

// Conversations returns the conversation registry.
func (s *Session) Conversations() *conversations.Registry { return s.registry }

// Messages returns the message synchronizer.
func (s *Session) Messages() *messages.Synchronizer { return s.sync }

// Reactions returns the reaction coordinator.
func (s *Session) Reactions() *reactions.Coordinator { return s.reactions }

// MLS returns the encrypted session bootstrapper.
func (s *Session) MLS() *mls.Bootstrapper { return s.mls }

// ErrorSlots returns the user-visible error slot of every area.
func (s *Session) ErrorSlots() []*event.ErrorSlot {
	return []*event.ErrorSlot{
		s.registry.Errors(),
		s.sync.Errors(),
		s.mls.Errors(),
	}
}

// StartServices starts event delivery, shared profile maintenance and the
// conversation list poller.
func (s *Session) StartServices() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.stopped {
		return errors.New("session services were already stopped")
	}
	if s.started {
		return nil
	}
	s.started = true

	s.services.Add(s.events.Service())
	s.services.Add(s.sharedProfiles.StartMaintenance(
		s.params.Profiles.MaintenancePeriod))
	s.services.Add(s.registry.StartPolling())
	jww.INFO.Printf("[Session] Services started for %s", s.account)
	return nil
}

// OpenConversation makes convoID the displayed conversation, loads its newest
// page and starts polling it.
func (s *Session) OpenConversation(ctx context.Context, convoID string) error {
	s.sync.SetDisplayedConversation(convoID)
	if err := s.sync.LoadMessages(ctx, convoID, true); err != nil {
		return err
	}
	_, err := s.sync.StartMessagePolling(convoID)
	return err
}

// CloseConversation stops polling convoID and drops its messages.
func (s *Session) CloseConversation(convoID string) error {
	return s.sync.StopMessagePolling(convoID)
}

// StopServices stops every poller and service and waits up to timeout for
// them to finish.
func (s *Session) StopServices(timeout time.Duration) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	pollErr := s.sync.StopAll()
	if !s.started || s.stopped {
		s.stopped = true
		return pollErr
	}
	s.stopped = true

	if err := s.services.Close(); err != nil {
		return err
	}
	if err := stoppable.WaitForStopped(s.services, timeout); err != nil {
		return err
	}
	jww.INFO.Printf("[Session] Services stopped for %s", s.account)
	return pollErr
}
