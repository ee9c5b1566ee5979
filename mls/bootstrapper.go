////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package mls bootstraps an account into the end-to-end encrypted messaging
// mode: device registration, one-time key package supply and the opt-in
// handshake with the service. Group messaging itself is out of scope.
package mls

import (
	"context"
	"sync"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/crypto/fastRNG"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/metrics"
	"gitlab.com/elixxir/convsync/settings"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

// StateCallback is called after every state change.
type StateCallback func(state State)

// Bootstrapper drives the opt-in sequence
// OptedOut -> Initializing -> KeyMaterialReady -> OptedIn. Any failing step
// returns the account to OptedOut with nothing partial kept, so the caller
// retries the full sequence.
type Bootstrapper struct {
	client   api.DeviceAPI
	settings *settings.Store
	kv       *versioned.KV
	rng      *fastRNG.StreamGenerator
	events   event.Reporter
	errSlot  *event.ErrorSlot
	params   Params

	state     State
	device    *deviceRecord
	inventory *Inventory
	stateCb   StateCallback
	mux       sync.RWMutex

	// opMux serializes the sequence steps
	opMux sync.Mutex
}

// NewBootstrapper loads the account's encrypted session state. The account is
// opted in only if the settings flag is set and a registered device is
// stored; a device left over from an unfinished sequence is discarded.
func NewBootstrapper(client api.DeviceAPI, store *settings.Store,
	kv *versioned.KV, rng *fastRNG.StreamGenerator, reporter event.Reporter,
	params Params) (*Bootstrapper, error) {
	kv, err := kv.Prefix(storePrefix + store.Account())
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = event.Discard{}
	}

	b := &Bootstrapper{
		client:    client,
		settings:  store,
		kv:        kv,
		rng:       rng,
		events:    reporter,
		errSlot:   event.NewErrorSlot(event.CategoryMLS),
		params:    params,
		state:     OptedOut,
		inventory: NewInventory(),
	}

	device, err := loadDevice(kv)
	if err != nil {
		return nil, err
	}

	switch {
	case store.OptedIn() && device != nil:
		bundles, err := loadBundles(kv)
		if err != nil {
			return nil, err
		}
		b.device = device
		b.inventory.Add(bundles...)
		b.state = OptedIn
		jww.INFO.Printf("[MLS] Loaded opted-in device %s with %d key packages",
			device.ID, len(bundles))
	case store.OptedIn():
		jww.WARN.Printf("[MLS] Opt-in flag set for %s without a device, "+
			"clearing it", store.Account())
		if err = store.SetOptedIn(false); err != nil {
			return nil, err
		}
	case device != nil:
		jww.INFO.Printf("[MLS] Discarding device %s from an unfinished opt-in",
			device.ID)
		if err = clearStorage(kv); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// State returns the current state.
func (b *Bootstrapper) State() State {
	b.mux.RLock()
	defer b.mux.RUnlock()
	return b.state
}

// DeviceID returns the registered device, or an empty string.
func (b *Bootstrapper) DeviceID() string {
	b.mux.RLock()
	defer b.mux.RUnlock()
	if b.device == nil {
		return ""
	}
	return b.device.ID
}

// InventoryCount returns how many published key packages are held locally.
func (b *Bootstrapper) InventoryCount() int {
	return b.inventory.Len()
}

// Errors returns the slot holding the latest user-visible failure.
func (b *Bootstrapper) Errors() *event.ErrorSlot {
	return b.errSlot
}

// RegisterStateCallback sets the function called on state changes,
// replacing any previous one.
func (b *Bootstrapper) RegisterStateCallback(cb StateCallback) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.stateCb = cb
}

// Initialize generates the device signing key and registers the device.
// Only valid from OptedOut.
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	b.opMux.Lock()
	defer b.opMux.Unlock()
	return b.initialize(ctx)
}

// UploadKeyPackageBatch generates and publishes count key packages. Once the
// service holds at least the minimum, an initializing account becomes
// KeyMaterialReady.
func (b *Bootstrapper) UploadKeyPackageBatch(ctx context.Context, count int) error {
	b.opMux.Lock()
	defer b.opMux.Unlock()
	return b.upload(ctx, count)
}

// OptIn asks the service to enable encrypted messaging, persists the flag
// once confirmed, then verifies the service reports it as effective. Only
// valid from KeyMaterialReady; calling it from any other state makes no
// service call.
func (b *Bootstrapper) OptIn(ctx context.Context) error {
	b.opMux.Lock()
	defer b.opMux.Unlock()
	return b.optIn(ctx)
}

// Enable runs the whole sequence: Initialize, an initial key package batch
// and OptIn. It is a no-op when already opted in.
func (b *Bootstrapper) Enable(ctx context.Context) error {
	b.opMux.Lock()
	defer b.opMux.Unlock()

	if b.State() == OptedIn {
		return nil
	}
	if err := b.initialize(ctx); err != nil {
		return err
	}
	if err := b.upload(ctx, b.params.InitialBatch); err != nil {
		return err
	}
	if s := b.State(); s != KeyMaterialReady {
		return b.abort("enable", errors.Wrapf(ErrKeyMaterialNotReady,
			"still %s after publishing %d key packages", s,
			b.params.InitialBatch))
	}
	return b.optIn(ctx)
}

// OptOut disables encrypted messaging on the service, then clears the flag
// and the device. Only valid from OptedIn; on a service failure nothing
// changes.
func (b *Bootstrapper) OptOut(ctx context.Context) error {
	b.opMux.Lock()
	defer b.opMux.Unlock()

	if s := b.State(); s != OptedIn {
		return errors.Wrapf(ErrNotOptedIn, "cannot opt out from %s", s)
	}

	if err := b.client.OptOut(ctx); err != nil {
		return b.fail("opt out", err)
	}
	if err := b.settings.SetOptedIn(false); err != nil {
		return b.fail("persist opt-out", err)
	}
	b.discard()
	b.setState(OptedOut)
	b.events.Report(event.Info, event.CategoryMLS, "OptedOut", "")
	return nil
}

// ReplenishKeyPackages checks the service's supply and publishes more
// packages when it has fallen below the threshold. If the service holds
// fewer packages than the inventory, the oldest local entries are dropped to
// match. Returns how many packages were published.
func (b *Bootstrapper) ReplenishKeyPackages(ctx context.Context) (int, error) {
	b.opMux.Lock()
	defer b.opMux.Unlock()

	if s := b.State(); s != KeyMaterialReady && s != OptedIn {
		return 0, errors.Wrapf(ErrNotRegistered, "cannot replenish from %s", s)
	}

	available, err := b.client.CountKeyPackages(ctx, b.DeviceID())
	if err != nil {
		return 0, b.fail("count key packages", err)
	}

	if held := b.inventory.Len(); available < held {
		jww.WARN.Printf("[MLS] Service holds %d key packages but the "+
			"inventory holds %d, trimming the inventory", available, held)
		b.inventory.TrimTo(available)
		b.persistInventory()
	}

	if available >= b.params.ReplenishThreshold {
		jww.DEBUG.Printf("[MLS] %d key packages available, no replenishment "+
			"needed", available)
		return 0, nil
	}

	target := b.params.InitialBatch
	if target < b.params.ReplenishThreshold {
		target = b.params.ReplenishThreshold
	}
	n := target - available
	if err = b.upload(ctx, n); err != nil {
		return 0, err
	}
	return n, nil
}

// ConsumeKeyPackage removes the package with the given reference from the
// inventory and returns it with its init private key.
func (b *Bootstrapper) ConsumeKeyPackage(hashRef []byte) (Bundle, error) {
	b.opMux.Lock()
	defer b.opMux.Unlock()

	bundle, ok := b.inventory.Take(hashRef)
	if !ok {
		return Bundle{}, errors.Wrapf(ErrNoMatchingKeyPackage, "%x", hashRef)
	}
	b.persistInventory()
	jww.DEBUG.Printf("[MLS] Consumed key package %x", hashRef)
	return bundle, nil
}

////////////////////////////////////////////////////////////////////////////////
// Sequence Steps                                                             //
////////////////////////////////////////////////////////////////////////////////

func (b *Bootstrapper) initialize(ctx context.Context) error {
	if s := b.State(); s != OptedOut {
		return errors.Wrapf(ErrInvalidTransition, "cannot initialize from %s", s)
	}
	b.setState(Initializing)

	stream := b.rng.GetStream()
	pub, priv, err := ed25519.GenerateKey(stream)
	stream.Close()
	if err != nil {
		return b.abort("generate device key", err)
	}

	device, err := b.client.RegisterDevice(ctx, api.DeviceRegistration{
		DeviceName:   b.params.DeviceName,
		SignatureKey: pub,
	})
	if err != nil {
		return b.abort("register device", err)
	}

	rec := &deviceRecord{
		ID:           device.ID,
		Name:         device.Name,
		SigningKey:   priv,
		RegisteredAt: device.RegisteredAt,
	}
	if err = saveDevice(b.kv, rec); err != nil {
		return b.abort("store device", err)
	}

	b.mux.Lock()
	b.device = rec
	b.mux.Unlock()
	jww.INFO.Printf("[MLS] Registered device %s", rec.ID)
	return nil
}

func (b *Bootstrapper) upload(ctx context.Context, count int) error {
	state := b.State()
	if !state.hasDevice() {
		return ErrNotRegistered
	}
	if count <= 0 {
		return errors.Errorf("key package count must be positive, "+
			"received %d", count)
	}

	b.mux.RLock()
	deviceID := b.device.ID
	signer := ed25519.PrivateKey(b.device.SigningKey)
	b.mux.RUnlock()

	bundles := make([]Bundle, 0, count)
	stream := b.rng.GetStream()
	for i := 0; i < count; i++ {
		bundle, err := newBundle(stream, signer, CipherSuiteX25519Ed25519,
			b.params.KeyPackageLifetime, netTime.Now())
		if err != nil {
			stream.Close()
			return b.uploadFailed(state, "generate key packages", err)
		}
		bundles = append(bundles, bundle)
	}
	stream.Close()

	published := make([]api.PublishedKeyPackage, len(bundles))
	for i, bundle := range bundles {
		published[i] = api.PublishedKeyPackage{
			Data:    bundle.Serialized,
			HashRef: bundle.HashRef,
		}
	}

	result, err := b.client.PublishKeyPackages(ctx, deviceID, published)
	if err != nil {
		return b.uploadFailed(state, "publish key packages", err)
	}

	b.inventory.Add(bundles...)
	b.persistInventory()
	metrics.KeyPackagesPublished.Add(float64(result.Published))
	jww.INFO.Printf("[MLS] Published %d key packages for %s, %d available",
		result.Published, deviceID, result.Available)

	if state == Initializing && result.Available >= b.params.KeyPackageMinimum {
		b.setState(KeyMaterialReady)
	}
	return nil
}

// uploadFailed aborts the sequence if it is still in progress. An opted-in
// account stays opted in when a replenishment fails.
func (b *Bootstrapper) uploadFailed(state State, step string, err error) error {
	if state == OptedIn {
		return b.fail(step, err)
	}
	return b.abort(step, err)
}

func (b *Bootstrapper) optIn(ctx context.Context) error {
	switch s := b.State(); s {
	case OptedIn:
		return nil
	case KeyMaterialReady:
	default:
		return errors.Wrapf(ErrKeyMaterialNotReady, "cannot opt in from %s", s)
	}

	status, err := b.client.OptIn(ctx, b.DeviceID())
	if err != nil {
		return b.abort("opt in", err)
	}
	if !status.Enabled {
		return b.abort("opt in", ErrOptInNotEffective)
	}

	// From here the service holds the opt-in, so aborting must undo it there
	if err = b.settings.SetOptedIn(true); err != nil {
		return b.abortOptedIn(ctx, "persist opt-in", err)
	}

	verified, err := b.client.GetOptInStatus(ctx)
	if err != nil {
		return b.abortOptedIn(ctx, "verify opt-in", err)
	}
	if !verified.Enabled {
		return b.abortOptedIn(ctx, "verify opt-in", ErrOptInNotEffective)
	}

	b.setState(OptedIn)
	b.events.Report(event.Info, event.CategoryMLS, "OptedIn", b.DeviceID())
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Helpers                                                                    //
////////////////////////////////////////////////////////////////////////////////

// abort returns the account to OptedOut, discarding the device, the inventory
// and any opt-in flag written during the sequence.
func (b *Bootstrapper) abort(step string, err error) error {
	b.discard()
	if b.settings.OptedIn() {
		if serr := b.settings.SetOptedIn(false); serr != nil {
			jww.ERROR.Printf("[MLS] Failed to revert the opt-in flag: %+v",
				serr)
		}
	}
	b.setState(OptedOut)

	err = errors.WithMessagef(err, "failed to %s", step)
	jww.WARN.Printf("[MLS] Opt-in sequence aborted: %+v", err)
	if !api.IsCanceled(err) {
		b.errSlot.Set(err)
		b.events.Report(event.Warning, event.CategoryMLS, "SequenceAborted",
			err.Error())
	}
	return err
}

// abortOptOutTimeout bounds the opt-out sent after an aborted opt-in when the
// caller's context is already done.
const abortOptOutTimeout = 10 * time.Second

// abortOptedIn aborts a sequence the service already accepted the opt-in
// for. The service is told to opt out on a best-effort basis so it does not
// keep routing to a device that no longer exists locally.
func (b *Bootstrapper) abortOptedIn(ctx context.Context, step string,
	err error) error {
	outCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		outCtx, cancel = context.WithTimeout(context.Background(),
			abortOptOutTimeout)
		defer cancel()
	}
	if oerr := b.client.OptOut(outCtx); oerr != nil {
		jww.WARN.Printf("[MLS] Failed to opt out on the service after an "+
			"aborted opt-in: %+v", oerr)
	}
	return b.abort(step, err)
}

// fail reports a failed step that does not change the state.
func (b *Bootstrapper) fail(step string, err error) error {
	err = errors.WithMessagef(err, "failed to %s", step)
	if api.IsCanceled(err) {
		jww.DEBUG.Printf("[MLS] %+v", err)
		return err
	}
	jww.ERROR.Printf("[MLS] %+v", err)
	b.errSlot.Set(err)
	b.events.Report(event.Warning, event.CategoryMLS, "StepFailed", err.Error())
	return err
}

// discard drops the device and inventory from memory and storage.
func (b *Bootstrapper) discard() {
	b.mux.Lock()
	b.device = nil
	b.mux.Unlock()
	b.inventory.Clear()
	if err := clearStorage(b.kv); err != nil {
		jww.ERROR.Printf("[MLS] Failed to clear device storage: %+v", err)
	}
}

func (b *Bootstrapper) persistInventory() {
	if err := saveBundles(b.kv, b.inventory.List()); err != nil {
		jww.ERROR.Printf("[MLS] Failed to store key package inventory: %+v",
			err)
	}
}

func (b *Bootstrapper) setState(s State) {
	b.mux.Lock()
	old := b.state
	b.state = s
	cb := b.stateCb
	b.mux.Unlock()

	if old == s {
		return
	}
	jww.INFO.Printf("[MLS] %s -> %s", old, s)
	b.events.Report(event.Debug, event.CategoryMLS, "StateChanged", s.String())
	if cb != nil {
		cb(s)
	}
}
