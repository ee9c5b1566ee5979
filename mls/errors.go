////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import "github.com/pkg/errors"

var (
	// ErrNotRegistered is returned by steps that need a registered device
	// when none exists.
	ErrNotRegistered = errors.New("no device is registered for encrypted messaging")

	// ErrKeyMaterialNotReady is returned by OptIn before enough key packages
	// have been published.
	ErrKeyMaterialNotReady = errors.New("key material is not ready, publish key packages first")

	// ErrOptInNotEffective is returned when the service does not report the
	// account as opted in after an opt-in.
	ErrOptInNotEffective = errors.New("opt-in did not take effect on the service")

	// ErrNotOptedIn is returned by OptOut when the account is not opted in.
	ErrNotOptedIn = errors.New("the account is not opted in")

	// ErrInvalidTransition is returned when a step is called out of order.
	ErrInvalidTransition = errors.New("invalid encrypted session transition")

	// ErrNoMatchingKeyPackage is returned when a hash reference does not
	// match any locally held key package.
	ErrNoMatchingKeyPackage = errors.New("no key package matches the reference")

	// ErrInvalidKeyPackage is returned when a serialized key package cannot
	// be decoded or its signature does not verify.
	ErrInvalidKeyPackage = errors.New("invalid key package")
)
