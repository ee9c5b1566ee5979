////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/metrics"
	"gitlab.com/elixxir/convsync/stoppable"
)

// StartPolling starts the conversation list poll. Every tick merges the first
// page of both lanes. A transport failure suspends the poll until a refresh
// succeeds. Calling it while the poll runs returns the running poll.
func (r *Registry) StartPolling() stoppable.Stoppable {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.poller != nil && r.poller.IsRunning() {
		return r.poller
	}

	stop := stoppable.NewSingle("ConversationListPoll")
	r.poller = stop
	go r.pollLoop(stop)
	jww.INFO.Printf("[Registry] Started conversation list poll every %s",
		r.params.PollInterval)
	r.events.Report(event.Info, event.CategoryRegistry, "PollingStarted", "")
	return stop
}

// PollSuspended returns true if the list poll stopped fetching after a
// failure.
func (r *Registry) PollSuspended() bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.pollSuspended
}

func (r *Registry) pollLoop(stop *stoppable.Single) {
	ticker := time.NewTicker(r.params.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop.Quit():
			jww.INFO.Print("[Registry] Stopped conversation list poll")
			stop.ToStopped()
			return
		case <-ticker.C:
			r.pollOnce(stop.Context())
		}
	}
}

// pollOnce merges the first page of each lane into the cache.
func (r *Registry) pollOnce(ctx context.Context) {
	r.mux.Lock()
	suspended := r.pollSuspended
	r.mux.Unlock()
	if suspended {
		jww.TRACE.Print("[Registry] List poll suspended, skipping tick")
		return
	}

	metrics.PollTicks.WithLabelValues(metrics.LoopConversations).Inc()
	var fetched []api.Conversation
	for _, status := range []api.ConversationStatus{
		api.StatusAccepted, api.StatusRequest} {
		page, err := r.client.ListConversations(ctx, status, "",
			r.params.PageSize)
		if err != nil {
			if api.IsCanceled(err) {
				return
			}
			if api.IsStaleCursor(err) {
				r.load(ctx, status, true)
				continue
			}
			r.mux.Lock()
			r.pollSuspended = true
			r.mux.Unlock()
			metrics.PollFailures.WithLabelValues(metrics.LoopConversations).Inc()
			r.events.Report(event.Warning, event.CategoryRegistry,
				"PollingSuspended", err.Error())
			r.fail(err, "poll %s conversations", status)
			return
		}

		r.mux.Lock()
		for _, c := range page.Conversations {
			r.mergeLocked(c)
		}
		if l := r.lanes[status]; !l.loaded {
			l.loaded = true
			l.cursor = page.Cursor
		}
		r.mux.Unlock()
		fetched = append(fetched, page.Conversations...)
	}

	r.notify()
	r.enrich(ctx, fetched)
}
