////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messages

import (
	"context"
	"sort"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/metrics"
	"gitlab.com/elixxir/convsync/stoppable"
)

// StartMessagePolling starts polling a conversation for new messages. If the
// conversation is already polled, the running poll is returned and nothing
// else happens. Ticks only fetch while the conversation is the displayed one.
func (s *Synchronizer) StartMessagePolling(convoID string) (stoppable.Stoppable, error) {
	if convoID == "" {
		return nil, ErrMissingIdentifier
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	if stop, exists := s.pollers[convoID]; exists {
		jww.TRACE.Printf("[Sync] %s is already polled", convoID)
		return stop, nil
	}

	stop := stoppable.NewSingle("MessagePoll:" + convoID)
	s.pollers[convoID] = stop
	s.cacheLocked(convoID, true)
	go s.pollLoop(convoID, stop)

	jww.INFO.Printf("[Sync] Started polling %s every %s", convoID,
		s.params.PollInterval)
	s.events.Report(event.Info, event.CategorySync, "PollingStarted", convoID)
	return stop, nil
}

// StopMessagePolling stops a conversation's poll, cancelling any fetch in
// flight, and discards its message cache. Stopping a conversation that is not
// polled does nothing.
func (s *Synchronizer) StopMessagePolling(convoID string) error {
	s.mux.Lock()
	stop, exists := s.pollers[convoID]
	delete(s.pollers, convoID)
	_, cached := s.caches[convoID]
	delete(s.caches, convoID)
	s.mux.Unlock()

	if cached {
		s.notify(convoID)
	}
	if !exists {
		return nil
	}

	jww.INFO.Printf("[Sync] Stopped polling %s", convoID)
	s.events.Report(event.Info, event.CategorySync, "PollingStopped", convoID)
	return stop.Close()
}

// StopAll stops every poll and discards their caches.
func (s *Synchronizer) StopAll() error {
	var lastErr error
	for _, convoID := range s.Polling() {
		if err := s.StopMessagePolling(convoID); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Polling returns the polled conversations, sorted.
func (s *Synchronizer) Polling() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	list := make([]string, 0, len(s.pollers))
	for convoID := range s.pollers {
		list = append(list, convoID)
	}
	sort.Strings(list)
	return list
}

// SetDisplayedConversation sets the conversation on screen. Polls of every
// other conversation idle. An empty ID pauses every poll.
func (s *Synchronizer) SetDisplayedConversation(convoID string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.displayed = convoID
}

// Suspended returns true if the conversation's poll stopped fetching after a
// transport failure. A successful refresh resumes it.
func (s *Synchronizer) Suspended(convoID string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	c := s.cacheLocked(convoID, false)
	return c != nil && c.suspended
}

func (s *Synchronizer) pollLoop(convoID string, stop *stoppable.Single) {
	ticker := time.NewTicker(s.params.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop.Quit():
			stop.ToStopped()
			return
		case <-ticker.C:
			s.pollOnce(stop.Context(), convoID)
		}
	}
}

// pollOnce fetches the messages newer than the newest cached one. The first
// tick, and any tick whose position the service no longer knows, refreshes
// instead.
func (s *Synchronizer) pollOnce(ctx context.Context, convoID string) {
	s.mux.Lock()
	c := s.cacheLocked(convoID, false)
	if s.displayed != convoID || c == nil || c.suspended {
		s.mux.Unlock()
		return
	}
	newest, generation := c.newestConfirmedID(), c.generation
	s.mux.Unlock()

	metrics.PollTicks.WithLabelValues(metrics.LoopMessages).Inc()
	if newest == "" {
		s.pollRefresh(ctx, convoID)
		return
	}

	page, err := s.client.ListMessagesSince(ctx, convoID, newest,
		s.params.PageSize)
	switch {
	case err == nil:
	case api.IsCanceled(err):
		return
	case api.IsStaleCursor(err):
		jww.INFO.Printf("[Sync] Position %s in %s is stale, refreshing",
			newest, convoID)
		s.pollRefresh(ctx, convoID)
		return
	default:
		s.suspend(convoID, err)
		return
	}

	s.mux.Lock()
	c = s.cacheLocked(convoID, false)
	if c == nil || c.generation != generation {
		s.mux.Unlock()
		return
	}
	c.merge(convoID, page.Messages)
	c.setTyping(page.Typing, s.convos.SelfID(),
		netTime.Now().Add(s.params.TypingTTL))
	s.mux.Unlock()

	if len(page.Messages) > 0 {
		jww.DEBUG.Printf("[Sync] Polled %d new messages in %s",
			len(page.Messages), convoID)
		s.notify(convoID)
	}

	// A full page may leave a gap behind it.
	if s.params.PageSize > 0 && len(page.Messages) >= s.params.PageSize {
		s.pollRefresh(ctx, convoID)
	}
}

func (s *Synchronizer) pollRefresh(ctx context.Context, convoID string) {
	s.mux.Lock()
	c := s.cacheLocked(convoID, false)
	if c == nil {
		s.mux.Unlock()
		return
	}
	c.fetchSeq++
	seq := c.fetchSeq
	s.mux.Unlock()

	page, err := s.client.ListMessages(ctx, convoID, "", s.params.PageSize)
	if err != nil {
		if !api.IsCanceled(err) {
			s.suspend(convoID, err)
		}
		return
	}

	s.mux.Lock()
	c = s.cacheLocked(convoID, false)
	applied := c != nil && s.applyPageLocked(c, convoID, page, true, seq, "", 0)
	s.mux.Unlock()
	if applied {
		s.notify(convoID)
	}
}

// suspend stops a poll from fetching until an explicit refresh succeeds.
func (s *Synchronizer) suspend(convoID string, err error) {
	s.mux.Lock()
	if c := s.cacheLocked(convoID, false); c != nil {
		c.suspended = true
	}
	s.mux.Unlock()

	metrics.PollFailures.WithLabelValues(metrics.LoopMessages).Inc()
	s.events.Report(event.Warning, event.CategorySync, "PollingSuspended",
		convoID)
	s.fail(err, "poll %s", convoID)
}
