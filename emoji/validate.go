////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package emoji validates reaction symbols.
package emoji

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/pkg/errors"
)

// InvalidReaction is returned if the passed reaction string is not exactly one
// emoji.
var InvalidReaction = errors.New(
	"the reaction is not valid, it must be a single emoji")

// ValidateReaction checks that the reaction is a single emoji with nothing
// else around it. Returns InvalidReaction otherwise.
func ValidateReaction(reaction string) error {
	if strings.TrimSpace(reaction) != reaction {
		return InvalidReaction
	}

	emojisList := gomoji.CollectAll(reaction)
	if len(emojisList) != 1 || emojisList[0].Character != reaction {
		return InvalidReaction
	}

	return nil
}

// Describe returns the name of the emoji, or the reaction itself if it is not
// a known emoji.
func Describe(reaction string) string {
	if e, err := gomoji.GetInfo(reaction); err == nil {
		return e.Slug
	}
	return reaction
}
