/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"time"

	"github.com/named-data/yanfd/fw/table"
)

// RetxSuppressionResult classifies an Interest relative to a PIT entry's
// outstanding out-records.
type RetxSuppressionResult int

const (
	// RetxSuppressionNew means pitEntry has no out-record at all yet.
	RetxSuppressionNew RetxSuppressionResult = iota
	// RetxSuppressionForward means enough time has passed since the last
	// forwarding that this should be treated as a legitimate retransmission.
	RetxSuppressionForward
	// RetxSuppressionSuppress means the Interest arrived too soon after the
	// last forwarding and should not trigger a new one upstream.
	RetxSuppressionSuppress
)

// RetxSuppressionFixed suppresses retransmissions within a fixed interval
// of the last forwarding, independent of any RTT measurement.
type RetxSuppressionFixed struct {
	Interval time.Duration
}

// NewRetxSuppressionFixed constructs a fixed-interval suppressor.
func NewRetxSuppressionFixed(interval time.Duration) *RetxSuppressionFixed {
	return &RetxSuppressionFixed{Interval: interval}
}

// SuppressResult decides whether to forward, suppress, or treat as new,
// based only on pitEntry's out-records (no per-face state needed).
func (r *RetxSuppressionFixed) SuppressResult(pitEntry table.PitEntry, now time.Time) RetxSuppressionResult {
	if len(pitEntry.OutRecords()) == 0 {
		return RetxSuppressionNew
	}
	var last time.Time
	for _, rec := range pitEntry.OutRecords() {
		if rec.LatestTimestamp.After(last) {
			last = rec.LatestTimestamp
		}
	}
	if now.Sub(last) < r.Interval {
		return RetxSuppressionSuppress
	}
	return RetxSuppressionForward
}
