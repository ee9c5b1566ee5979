////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
)

// Tests that getting a key that was never set returns an error for which
// Exists is false.
func TestKV_Get_NotFound(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())

	result, err := vkv.Get("test", 0)
	if err == nil {
		t.Error("Getting a key that didn't exist should have returned an " +
			"error.")
	}
	if vkv.Exists(err) {
		t.Errorf("Exists should be false for a missing key: %+v", err)
	}
	if result != nil {
		t.Error("Getting a key that didn't exist shouldn't have returned " +
			"data.")
	}
}

// Tests that an object set can be read back at the same version only.
func TestKV_Set_Get(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	original := NewObject(1, []byte("data"))

	if err := vkv.Set("key", original); err != nil {
		t.Fatalf("Set returned an error: %+v", err)
	}

	result, err := vkv.Get("key", 1)
	if err != nil {
		t.Fatalf("Get returned an error: %+v", err)
	}
	if !bytes.Equal(result.Data, original.Data) {
		t.Errorf("Unexpected data.\nexpected: %q\nreceived: %q",
			original.Data, result.Data)
	}

	if _, err = vkv.Get("key", 0); err == nil {
		t.Error("Get at a different version should fail.")
	}
}

// Tests that Delete removes the key and that deleting it again succeeds.
func TestKV_Delete(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	if err := vkv.Set("key", NewObject(0, []byte("data"))); err != nil {
		t.Fatalf("Set returned an error: %+v", err)
	}

	if err := vkv.Delete("key", 0); err != nil {
		t.Fatalf("Delete returned an error: %+v", err)
	}
	if _, err := vkv.Get("key", 0); err == nil {
		t.Error("Key still present after delete.")
	}
	if err := vkv.Delete("key", 0); err != nil {
		t.Errorf("Deleting a missing key returned an error: %+v", err)
	}
}

type testRecord struct {
	Name string
	At   time.Time
}

// Tests the JSON record helpers for a present, missing and corrupt record.
func TestKV_JSON(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	in := testRecord{Name: "alice", At: time.Unix(100, 0).UTC()}
	require.NoError(t, vkv.SetJSON("record", 2, in))

	var out testRecord
	found, err := vkv.GetJSON("record", 2, &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in.Name, out.Name)
	require.True(t, in.At.Equal(out.At))

	found, err = vkv.GetJSON("missing", 2, &out)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, vkv.Set("bad", NewObject(2, []byte("{"))))
	found, err = vkv.GetJSON("bad", 2, &out)
	require.False(t, found)
	require.True(t, errors.Is(err, ErrCorrupt))
}

// Tests that prefixed KVs do not see each other's keys.
func TestKV_Prefix(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	a, err := vkv.Prefix("a")
	if err != nil {
		t.Fatalf("Prefix returned an error: %+v", err)
	}
	b, _ := vkv.Prefix("b")

	if err = a.Set("key", NewObject(0, []byte("a"))); err != nil {
		t.Fatalf("Set returned an error: %+v", err)
	}

	if _, err = b.Get("key", 0); err == nil {
		t.Error("Prefix b can read a key stored under prefix a.")
	}

	expected := "a/key_0"
	if a.makeKey("key", 0) != expected {
		t.Errorf("Unexpected full key.\nexpected: %s\nreceived: %s",
			expected, a.makeKey("key", 0))
	}

	if _, err = vkv.Prefix(""); err == nil {
		t.Error("Empty prefix should be rejected.")
	}
}

// Tests that an Object survives a Marshal and Unmarshal, which is the form
// ekv stores it in.
func TestObject_Marshal_Unmarshal(t *testing.T) {
	original := NewObject(7, []byte("data"))

	var decoded Object
	require.NoError(t, decoded.Unmarshal(original.Marshal()))
	require.Equal(t, original.Version, decoded.Version)
	require.Equal(t, original.Data, decoded.Data)
	require.True(t, original.Timestamp.Equal(decoded.Timestamp))

	require.Error(t, decoded.Unmarshal([]byte("not json")))
}
