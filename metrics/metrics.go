////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package metrics holds the Prometheus collectors shared by the sync
// components. Collectors register with the default registry on import.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "convsync"

// Poll loop labels.
const (
	LoopConversations = "conversations"
	LoopMessages      = "messages"
)

// Profile lookup tiers.
const (
	TierMemory  = "memory"
	TierShared  = "shared"
	TierFetched = "fetched"
	TierMissing = "missing"
)

var (
	// PollTicks counts poll ticks that issued a fetch, per loop.
	PollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Poll ticks that issued a fetch.",
		}, []string{"loop"})

	// PollFailures counts poll ticks that ended in a transport failure.
	PollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Poll ticks that failed and suspended their loop.",
		}, []string{"loop"})

	// Rollbacks counts optimistic mutations reverted after a failure.
	Rollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_rollbacks_total",
			Help:      "Optimistic local mutations reverted after a failure.",
		}, []string{"operation"})

	// ProfileLookups counts profile resolutions by the tier that served them.
	ProfileLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_lookups_total",
			Help:      "Profile lookups by the tier that answered them.",
		}, []string{"tier"})

	// KeyPackagesPublished counts key packages accepted by the service.
	KeyPackagesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_packages_published_total",
			Help:      "One-time key packages published for this device.",
		})
)

func init() {
	prometheus.MustRegister(PollTicks)
	prometheus.MustRegister(PollFailures)
	prometheus.MustRegister(Rollbacks)
	prometheus.MustRegister(ProfileLookups)
	prometheus.MustRegister(KeyPackagesPublished)
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
