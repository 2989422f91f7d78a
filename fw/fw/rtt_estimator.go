/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import "time"

// RttEstimatorOptions tunes the Jacobson/Karels estimator.
type RttEstimatorOptions struct {
	Alpha      float64       // SRTT smoothing factor
	Beta       float64       // RTTVAR smoothing factor
	K          float64       // RTO = SRTT + K*RTTVAR
	MinRto     time.Duration
	MaxRto     time.Duration
	InitialRto time.Duration
}

// DefaultRttEstimatorOptions matches NFD's defaults.
func DefaultRttEstimatorOptions() RttEstimatorOptions {
	return RttEstimatorOptions{
		Alpha:      0.125,
		Beta:       0.25,
		K:          4,
		MinRto:     200 * time.Millisecond,
		MaxRto:     20 * time.Second,
		InitialRto: 1 * time.Second,
	}
}

// RttEstimator computes a smoothed RTT and an RTO bound to it, one instance
// per measured target. It must not be fed a sample for a
// retransmitted probe (Karn's algorithm); callers are responsible for
// only calling AddMeasurement on an unambiguous RTT sample.
type RttEstimator struct {
	opts RttEstimatorOptions

	hasSample bool
	sRtt      time.Duration
	rttVar    time.Duration
	rto       time.Duration

	nRtos int // consecutive RTO-without-sample backoffs (for BackoffRto)
}

// NewRttEstimator constructs an estimator with no sample yet, so Rto()
// returns opts.InitialRto until the first AddMeasurement.
func NewRttEstimator(opts RttEstimatorOptions) *RttEstimator {
	return &RttEstimator{opts: opts, rto: opts.InitialRto}
}

// AddMeasurement folds rtt into the smoothed estimate per the classic
// Jacobson/Karels recurrence, clamping the resulting RTO to
// [MinRto, MaxRto].
func (e *RttEstimator) AddMeasurement(rtt time.Duration) {
	if !e.hasSample {
		e.sRtt = rtt
		e.rttVar = rtt / 2
		e.hasSample = true
	} else {
		diff := rtt - e.sRtt
		if diff < 0 {
			diff = -diff
		}
		e.rttVar = e.rttVar + time.Duration(e.opts.Beta*float64(diff-e.rttVar))
		e.sRtt = e.sRtt + time.Duration(e.opts.Alpha*float64(rtt-e.sRtt))
	}
	e.nRtos = 0
	e.computeRto()
}

func (e *RttEstimator) computeRto() {
	rto := e.sRtt + time.Duration(e.opts.K*float64(e.rttVar))
	e.rto = clampDuration(rto, e.opts.MinRto, e.opts.MaxRto)
}

// BackoffRto doubles the RTO (bounded by MaxRto) after a retransmission
// with no new sample, per the standard Karn/Partridge backoff.
func (e *RttEstimator) BackoffRto() {
	e.nRtos++
	e.rto = clampDuration(e.rto*2, e.opts.MinRto, e.opts.MaxRto)
}

// Rto returns the current retransmission timeout estimate.
func (e *RttEstimator) Rto() time.Duration {
	return e.rto
}

// SRtt returns the current smoothed RTT, or 0 if no sample has been added.
func (e *RttEstimator) SRtt() time.Duration {
	return e.sRtt
}

// HasSample reports whether at least one RTT sample has been folded in.
func (e *RttEstimator) HasSample() bool {
	return e.hasSample
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
