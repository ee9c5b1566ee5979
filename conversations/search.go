////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"strings"

	"golang.org/x/text/cases"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/profiles"
)

// SearchResult is the local search projection.
type SearchResult struct {
	// Conversations are accepted conversations with a matching member, most
	// recently active first.
	Conversations []api.Conversation

	// Profiles are cached profiles matching the term, excluding self.
	Profiles []profiles.Entry
}

// SearchLocal matches term case-insensitively against the members of cached
// accepted conversations and against cached profiles. Members match on their
// identifier, handle or display name; selfID never matches. No request is
// made. An empty term returns every accepted conversation and no profiles.
func (r *Registry) SearchLocal(term, selfID string) SearchResult {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(term))

	var known map[string]profiles.Entry
	var profileHits []profiles.Entry
	if r.profiles != nil {
		entries := r.profiles.Entries()
		known = make(map[string]profiles.Entry, len(entries))
		for _, e := range entries {
			known[e.ID] = e
			if needle != "" && e.ID != profiles.Canonicalize(selfID) &&
				entryMatches(folder, needle, e) {
				profileHits = append(profileHits, e)
			}
		}
	}

	r.mux.Lock()
	accepted := r.laneLocked(api.StatusAccepted)
	r.mux.Unlock()

	if needle == "" {
		return SearchResult{Conversations: accepted}
	}

	var matches []api.Conversation
	for _, c := range accepted {
		for _, member := range c.Members {
			canonical := profiles.Canonicalize(member)
			if canonical == profiles.Canonicalize(selfID) {
				continue
			}
			if strings.Contains(folder.String(member), needle) {
				matches = append(matches, c)
				break
			}
			if e, exists := known[canonical]; exists &&
				entryMatches(folder, needle, e) {
				matches = append(matches, c)
				break
			}
		}
	}
	return SearchResult{Conversations: matches, Profiles: profileHits}
}

func entryMatches(folder cases.Caser, needle string, e profiles.Entry) bool {
	return strings.Contains(folder.String(e.Handle), needle) ||
		strings.Contains(folder.String(e.DisplayName), needle) ||
		strings.Contains(folder.String(e.ID), needle)
}
