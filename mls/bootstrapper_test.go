////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/crypto/fastRNG"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/crypto/csprng"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/metrics"
	"gitlab.com/elixxir/convsync/settings"
	"gitlab.com/elixxir/convsync/storage/versioned"
)

const testAccount = "did:plc:self"

func testParams() Params {
	p := GetDefaultParams()
	p.KeyPackageMinimum = 3
	p.InitialBatch = 5
	p.ReplenishThreshold = 3
	return p
}

func newTestBootstrapper(t *testing.T, client *api.MockClient,
	kv *versioned.KV) (*Bootstrapper, *settings.Store) {
	store, err := settings.NewStore(kv, testAccount)
	require.NoError(t, err)
	rng := fastRNG.NewStreamGenerator(1, 1, csprng.NewSystemRNG)
	b, err := NewBootstrapper(client, store, kv, rng, nil, testParams())
	require.NoError(t, err)
	return b, store
}

func newTestKV() *versioned.KV {
	return versioned.NewKV(ekv.MakeMemstore())
}

// Tests that Enable walks every state and leaves the account opted in with
// verifiable key packages published.
func TestBootstrapper_Enable(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())
	require.Equal(t, OptedOut, b.State())

	var states []State
	b.RegisterStateCallback(func(s State) { states = append(states, s) })

	published := testutil.ToFloat64(metrics.KeyPackagesPublished)
	require.NoError(t, b.Enable(context.Background()))

	require.Equal(t, []State{Initializing, KeyMaterialReady, OptedIn}, states)
	require.Equal(t, OptedIn, b.State())
	require.True(t, store.OptedIn())
	require.True(t, client.OptedIn())
	require.NotEmpty(t, b.DeviceID())
	require.Equal(t, 5, b.InventoryCount())
	require.Equal(t, published+5,
		testutil.ToFloat64(metrics.KeyPackagesPublished))

	pkgs := client.KeyPackages(b.DeviceID())
	require.Len(t, pkgs, 5)
	for _, p := range pkgs {
		kp, err := UnmarshalKeyPackage(p.Data)
		require.NoError(t, err)
		require.NoError(t, kp.Verify())
		require.Equal(t, HashRef(p.Data), p.HashRef)
	}

	// A second call does nothing
	require.NoError(t, b.Enable(context.Background()))
	require.Equal(t, 1, client.Calls(api.MethodRegisterDevice))
}

// Tests that OptIn refuses to call the service before key material is ready.
func TestBootstrapper_OptIn_NotReady(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())

	require.ErrorIs(t, b.OptIn(context.Background()), ErrKeyMaterialNotReady)

	require.NoError(t, b.Initialize(context.Background()))
	require.Equal(t, Initializing, b.State())
	require.ErrorIs(t, b.OptIn(context.Background()), ErrKeyMaterialNotReady)

	require.Equal(t, 0, client.Calls(api.MethodOptIn))
	require.False(t, store.OptedIn())
}

// Tests that key material only becomes ready once the service holds the
// minimum number of packages.
func TestBootstrapper_UploadKeyPackageBatch_Minimum(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, _ := newTestBootstrapper(t, client, newTestKV())

	require.ErrorIs(t, b.UploadKeyPackageBatch(context.Background(), 2),
		ErrNotRegistered)

	require.NoError(t, b.Initialize(context.Background()))
	require.NoError(t, b.UploadKeyPackageBatch(context.Background(), 2))
	require.Equal(t, Initializing, b.State())

	require.NoError(t, b.UploadKeyPackageBatch(context.Background(), 1))
	require.Equal(t, KeyMaterialReady, b.State())

	require.NoError(t, b.OptIn(context.Background()))
	require.Equal(t, OptedIn, b.State())
}

// Tests that Initialize is only valid from OptedOut.
func TestBootstrapper_Initialize_Twice(t *testing.T) {
	b, _ := newTestBootstrapper(t, api.NewMockClient(testAccount), newTestKV())
	require.NoError(t, b.Initialize(context.Background()))
	require.ErrorIs(t, b.Initialize(context.Background()), ErrInvalidTransition)
}

// Tests that a failed registration leaves the account opted out with the
// failure reported.
func TestBootstrapper_Enable_RegisterFailure(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())
	client.FailNext(api.MethodRegisterDevice, api.ErrMockFailure)

	err := b.Enable(context.Background())
	require.ErrorIs(t, err, api.ErrMockFailure)
	require.Equal(t, OptedOut, b.State())
	require.Empty(t, b.DeviceID())
	require.False(t, store.OptedIn())
	require.NotNil(t, b.Errors().Current())
}

// Tests that a failed publish aborts the sequence and the full sequence can
// then be retried.
func TestBootstrapper_PublishFailure(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())

	require.NoError(t, b.Initialize(context.Background()))
	client.FailNext(api.MethodPublishKeyPackages, api.ErrMockFailure)
	require.Error(t, b.UploadKeyPackageBatch(context.Background(), 5))
	require.Equal(t, OptedOut, b.State())
	require.Empty(t, b.DeviceID())
	require.Equal(t, 0, b.InventoryCount())
	require.Equal(t, 0, client.Calls(api.MethodOptIn))
	require.False(t, store.OptedIn())

	require.NoError(t, b.Enable(context.Background()))
	require.Equal(t, OptedIn, b.State())
}

// Tests that an opt-in the service does not report as effective reverts the
// local flag.
func TestBootstrapper_OptIn_NotEffective(t *testing.T) {
	client := api.NewMockClient(testAccount)
	client.IneffectiveOptIn = true
	b, store := newTestBootstrapper(t, client, newTestKV())

	err := b.Enable(context.Background())
	require.ErrorIs(t, err, ErrOptInNotEffective)
	require.Equal(t, OptedOut, b.State())
	require.False(t, store.OptedIn())
	require.Equal(t, 1, client.Calls(api.MethodGetOptInStatus))
	require.False(t, client.OptedIn())
}

// Tests that a failed verification after the service accepted the opt-in
// opts the account back out on the service as well as locally.
func TestBootstrapper_OptIn_VerifyFailure(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())
	client.FailNext(api.MethodGetOptInStatus, api.ErrMockFailure)

	err := b.Enable(context.Background())
	require.ErrorIs(t, err, api.ErrMockFailure)
	require.Equal(t, OptedOut, b.State())
	require.False(t, store.OptedIn())
	require.Empty(t, b.DeviceID())
	require.Equal(t, 1, client.Calls(api.MethodOptIn))
	require.Equal(t, 1, client.Calls(api.MethodOptOut))
	require.False(t, client.OptedIn())

	require.NoError(t, b.Enable(context.Background()))
	require.True(t, client.OptedIn())
}

// Tests that the abort still completes when the service rejects the
// follow-up opt-out.
func TestBootstrapper_OptIn_VerifyFailure_OptOutFails(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())
	client.FailNext(api.MethodGetOptInStatus, api.ErrMockFailure)
	client.FailNext(api.MethodOptOut, api.ErrMockFailure)

	require.Error(t, b.Enable(context.Background()))
	require.Equal(t, OptedOut, b.State())
	require.False(t, store.OptedIn())
	require.Equal(t, 1, client.Calls(api.MethodOptOut))
}

// Tests that a failed opt-in call does not persist the flag.
func TestBootstrapper_OptIn_Failure(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())
	client.FailNext(api.MethodOptIn, api.ErrMockFailure)

	require.ErrorIs(t, b.Enable(context.Background()), api.ErrMockFailure)
	require.Equal(t, OptedOut, b.State())
	require.False(t, store.OptedIn())
	require.Equal(t, 0, client.Calls(api.MethodGetOptInStatus))
}

// Tests OptOut from each state and its failure handling.
func TestBootstrapper_OptOut(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, store := newTestBootstrapper(t, client, newTestKV())

	require.ErrorIs(t, b.OptOut(context.Background()), ErrNotOptedIn)
	require.Equal(t, 0, client.Calls(api.MethodOptOut))

	require.NoError(t, b.Enable(context.Background()))

	client.FailNext(api.MethodOptOut, api.ErrMockFailure)
	require.ErrorIs(t, b.OptOut(context.Background()), api.ErrMockFailure)
	require.Equal(t, OptedIn, b.State())
	require.True(t, store.OptedIn())

	require.NoError(t, b.OptOut(context.Background()))
	require.Equal(t, OptedOut, b.State())
	require.False(t, store.OptedIn())
	require.False(t, client.OptedIn())
	require.Empty(t, b.DeviceID())
	require.Equal(t, 0, b.InventoryCount())
}

// Tests that an opted-in account is restored from storage and that an
// unfinished sequence is discarded.
func TestNewBootstrapper_Reload(t *testing.T) {
	client := api.NewMockClient(testAccount)
	kv := newTestKV()
	b, _ := newTestBootstrapper(t, client, kv)
	require.NoError(t, b.Enable(context.Background()))

	reloaded, _ := newTestBootstrapper(t, client, kv)
	require.Equal(t, OptedIn, reloaded.State())
	require.Equal(t, b.DeviceID(), reloaded.DeviceID())
	require.Equal(t, 5, reloaded.InventoryCount())

	partialKV := newTestKV()
	partial, _ := newTestBootstrapper(t, client, partialKV)
	require.NoError(t, partial.Initialize(context.Background()))

	reloaded, _ = newTestBootstrapper(t, client, partialKV)
	require.Equal(t, OptedOut, reloaded.State())
	require.Empty(t, reloaded.DeviceID())
}

// Tests that replenishment tops the supply back up and trims inventory the
// service no longer holds.
func TestBootstrapper_ReplenishKeyPackages(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, _ := newTestBootstrapper(t, client, newTestKV())

	_, err := b.ReplenishKeyPackages(context.Background())
	require.ErrorIs(t, err, ErrNotRegistered)

	require.NoError(t, b.Enable(context.Background()))

	n, err := b.ReplenishKeyPackages(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	claimed := client.KeyPackages(b.DeviceID())[:3]
	client.ClaimKeyPackages(b.DeviceID(), 3)

	n, err = b.ReplenishKeyPackages(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 5, b.InventoryCount())
	require.Len(t, client.KeyPackages(b.DeviceID()), 5)

	for _, p := range claimed {
		_, err = b.ConsumeKeyPackage(p.HashRef)
		require.ErrorIs(t, err, ErrNoMatchingKeyPackage)
	}
}

// Tests that a failed replenishment leaves an opted-in account opted in.
func TestBootstrapper_ReplenishKeyPackages_Failure(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, _ := newTestBootstrapper(t, client, newTestKV())
	require.NoError(t, b.Enable(context.Background()))
	client.ClaimKeyPackages(b.DeviceID(), 5)

	client.FailNext(api.MethodPublishKeyPackages, api.ErrMockFailure)
	_, err := b.ReplenishKeyPackages(context.Background())
	require.ErrorIs(t, err, api.ErrMockFailure)
	require.Equal(t, OptedIn, b.State())
	require.NotEmpty(t, b.DeviceID())
}

// Tests that consuming a package removes it and returns its private key.
func TestBootstrapper_ConsumeKeyPackage(t *testing.T) {
	client := api.NewMockClient(testAccount)
	b, _ := newTestBootstrapper(t, client, newTestKV())
	require.NoError(t, b.Enable(context.Background()))

	ref := client.KeyPackages(b.DeviceID())[1].HashRef
	bundle, err := b.ConsumeKeyPackage(ref)
	require.NoError(t, err)
	require.Equal(t, ref, bundle.HashRef)
	require.NotEmpty(t, bundle.InitPrivate)
	require.Equal(t, 4, b.InventoryCount())

	_, err = b.ConsumeKeyPackage(ref)
	require.ErrorIs(t, err, ErrNoMatchingKeyPackage)
}
