// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	askTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursedb_ask_total",
		Help: "Answered turns by outcome.",
	}, []string{"outcome"})

	askDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coursedb_ask_duration_seconds",
		Help:    "End-to-end time to answer one turn.",
		Buckets: prometheus.DefBuckets,
	})

	searchMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coursedb_search_matches",
		Help:    "Sections matched per executed query.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	liveSessions = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "coursedb_live_sessions",
		Help: "Sessions currently retained in memory.",
	}, func() float64 {
		if f := sessionGaugeSource.Load(); f != nil {
			return float64((*f)())
		}
		return 0
	})

	// sessionGaugeSource is set at service construction; atomic because a
	// /metrics scrape can race the constructor.
	sessionGaugeSource atomic.Pointer[func() int]
)
