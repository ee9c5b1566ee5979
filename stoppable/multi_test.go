////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"reflect"
	"testing"
)

// Tests that Multi.Add adds all the stoppables to the list.
func TestMulti_Add(t *testing.T) {
	multi := NewMulti("testMulti")
	expected := []Stoppable{
		NewSingle("testSingle0"),
		NewMulti("testMulti0"),
		NewSingle("testSingle1"),
	}

	for _, stoppable := range expected {
		multi.Add(stoppable)
	}

	if !reflect.DeepEqual(multi.stoppables, expected) {
		t.Errorf("Add did not add the correct Stoppables."+
			"\nexpected: %+v\nreceived: %+v", expected, multi.stoppables)
	}
}

// Unit test of Multi.Name.
func TestMulti_Name(t *testing.T) {
	multi := NewMulti("testMulti")
	multi.Add(NewSingle("a"))
	multi.Add(NewSingle("b"))

	expected := "testMulti: {a, b}"
	if multi.Name() != expected {
		t.Errorf("Unexpected name.\nexpected: %s\nreceived: %s",
			expected, multi.Name())
	}
}

// Tests that Multi.Close closes every child and the status follows them.
func TestMulti_Close(t *testing.T) {
	multi := NewMulti("testMulti")
	singles := []*Single{NewSingle("a"), NewSingle("b"), NewSingle("c")}
	for _, s := range singles {
		multi.Add(s)
	}

	if !multi.IsRunning() {
		t.Errorf("Multi should be running: %s", multi.GetStatus())
	}

	if err := multi.Close(); err != nil {
		t.Fatalf("Close returned an error: %+v", err)
	}

	if !multi.IsStopping() {
		t.Errorf("Multi should be stopping: %s", multi.GetStatus())
	}

	for _, s := range singles {
		s.ToStopped()
	}

	if !multi.IsStopped() {
		t.Errorf("Multi should be stopped: %s", multi.GetStatus())
	}
}
