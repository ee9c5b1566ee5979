////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

// Profile is the public display profile of an account.
type Profile struct {
	// DID is the provider-qualified account identifier.
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// ActorMetadata is usage metadata exposed to conversation moderators.
type ActorMetadata struct {
	DID           string `json:"did"`
	MessagesSent  int    `json:"messagesSent"`
	Conversations int    `json:"convos"`
	AccessAllowed bool   `json:"accessAllowed"`
}
