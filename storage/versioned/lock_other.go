////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

//go:build !unix

package versioned

import (
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

var warnOnce sync.Once

// withFileLock only has the in-process lock on this platform.
func withFileLock(lockPath string, fn func() error) error {
	if lockPath != "" {
		warnOnce.Do(func() {
			jww.WARN.Printf("File locks are not supported on this "+
				"platform; %s is only locked within this process", lockPath)
		})
	}
	return fn()
}
