////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package settings

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/convsync/storage/versioned"
)

// Tests that settings persist across stores built on the same KV and that
// accounts do not share settings.
func TestStore_Persistence(t *testing.T) {
	kv := versioned.NewKV(ekv.MakeMemstore())

	s, err := NewStore(kv, "did:example:alice")
	require.NoError(t, err)
	require.False(t, s.OptedIn())

	require.NoError(t, s.SetOptedIn(true))
	require.NoError(t, s.SetExperimental("encryptedChats", true))
	require.NoError(t, s.SetExperimental("drafts", false))

	loaded, err := NewStore(kv, "did:example:alice")
	require.NoError(t, err)
	require.True(t, loaded.OptedIn())
	require.True(t, loaded.Experimental("encryptedChats"))
	require.False(t, loaded.Experimental("drafts"))
	require.Equal(t, []string{"encryptedChats"}, loaded.ExperimentalToggles())

	other, err := NewStore(kv, "did:example:bob")
	require.NoError(t, err)
	require.False(t, other.OptedIn())
}

// Tests that an empty account is rejected.
func TestNewStore_NoAccount(t *testing.T) {
	_, err := NewStore(versioned.NewKV(ekv.MakeMemstore()), "")
	if err == nil {
		t.Errorf("Expected an error for an empty account.")
	}
}
