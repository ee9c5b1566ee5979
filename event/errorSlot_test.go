////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package event

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Tests that repeated errors coalesce and that a new error replaces the old.
func TestErrorSlot_Set(t *testing.T) {
	s := NewErrorSlot("sync")
	var updates []*ErrorState
	s.RegisterUpdateCallback(func(state *ErrorState) {
		updates = append(updates, state)
	})

	require.True(t, s.Set(errors.New("timeout")))
	require.True(t, s.Set(errors.New("timeout")))
	require.Equal(t, 2, s.Current().Count)

	require.True(t, s.Set(errors.New("rejected")))
	require.Equal(t, 1, s.Current().Count)
	require.Equal(t, "rejected", s.Current().Err.Error())
	require.Len(t, updates, 3)
}

// Tests that nil errors and cancellations never reach the slot.
func TestErrorSlot_Set_Ignored(t *testing.T) {
	s := NewErrorSlot("sync")
	require.False(t, s.Set(nil))
	require.False(t, s.Set(context.Canceled))
	require.False(t, s.Set(errors.Wrap(context.Canceled, "send")))
	require.Nil(t, s.Current())
}

// Tests that Acknowledge clears the slot and notifies once.
func TestErrorSlot_Acknowledge(t *testing.T) {
	s := NewErrorSlot("registry")
	cleared := 0
	s.RegisterUpdateCallback(func(state *ErrorState) {
		if state == nil {
			cleared++
		}
	})

	s.Acknowledge()
	require.Equal(t, 0, cleared)

	s.Set(errors.New("failed"))
	s.Acknowledge()
	s.Acknowledge()
	require.Nil(t, s.Current())
	require.Equal(t, 1, cleared)
}
