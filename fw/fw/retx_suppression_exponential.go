/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"time"

	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
)

// RetxSuppressionExponentialOptions tunes the exponential-backoff
// suppression window.
type RetxSuppressionExponentialOptions struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetxSuppressionExponentialOptions is initial 1ms, multiplier 2.0,
// max 250ms.
func DefaultRetxSuppressionExponentialOptions() RetxSuppressionExponentialOptions {
	return RetxSuppressionExponentialOptions{
		InitialInterval: 1 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     250 * time.Millisecond,
	}
}

// retxSuppressionWindow is the per-target accumulated backoff window. It is
// shared by the two variants below: one instance per PIT entry (best-route)
// or one per (PIT entry, out face) pair (ASF).
type retxSuppressionWindow struct {
	interval time.Duration
	last     time.Time
}

func (o RetxSuppressionExponentialOptions) firstWindow(now time.Time) retxSuppressionWindow {
	return retxSuppressionWindow{interval: o.InitialInterval, last: now}
}

func (o RetxSuppressionExponentialOptions) classify(w *retxSuppressionWindow, now time.Time) RetxSuppressionResult {
	if now.Sub(w.last) < w.interval {
		return RetxSuppressionSuppress
	}
	w.last = now
	next := time.Duration(float64(w.interval) * o.Multiplier)
	if next > o.MaxInterval {
		next = o.MaxInterval
	}
	w.interval = next
	return RetxSuppressionForward
}

// RetxSuppressionExponential is the per-PIT-entry exponential-backoff
// suppressor best-route v5 uses: the suppression window grows across every
// retransmission of the entry regardless of which face it goes to.
type RetxSuppressionExponential struct {
	opts    RetxSuppressionExponentialOptions
	windows map[uint32]*retxSuppressionWindow // keyed by PIT entry token
}

// NewRetxSuppressionExponential constructs a per-PIT-entry suppressor.
func NewRetxSuppressionExponential(opts RetxSuppressionExponentialOptions) *RetxSuppressionExponential {
	return &RetxSuppressionExponential{opts: opts, windows: make(map[uint32]*retxSuppressionWindow)}
}

// SuppressResult classifies interest arrival against pitEntry's
// accumulated window, creating one on first forward.
func (r *RetxSuppressionExponential) SuppressResult(pitEntry table.PitEntry, now time.Time) RetxSuppressionResult {
	if len(pitEntry.OutRecords()) == 0 {
		w := r.opts.firstWindow(now)
		r.windows[pitEntry.Token()] = &w
		return RetxSuppressionNew
	}
	w, ok := r.windows[pitEntry.Token()]
	if !ok {
		w2 := r.opts.firstWindow(now)
		w = &w2
		r.windows[pitEntry.Token()] = w
		return RetxSuppressionForward
	}
	return r.opts.classify(w, now)
}

// Erase drops pitEntry's accumulated window, to be called from a
// strategy's BeforeErasePitEntry to bound memory use.
func (r *RetxSuppressionExponential) Erase(pitEntry table.PitEntry) {
	delete(r.windows, pitEntry.Token())
}

// RetxSuppressionExponentialPerFace is the per-(PIT entry, out face)
// variant ASF uses to time the probe/retransmission schedule
// independently per upstream candidate.
type RetxSuppressionExponentialPerFace struct {
	opts    RetxSuppressionExponentialOptions
	windows map[uint32]map[defn.FaceId]*retxSuppressionWindow
}

// NewRetxSuppressionExponentialPerFace constructs a per-face suppressor.
func NewRetxSuppressionExponentialPerFace(opts RetxSuppressionExponentialOptions) *RetxSuppressionExponentialPerFace {
	return &RetxSuppressionExponentialPerFace{
		opts:    opts,
		windows: make(map[uint32]map[defn.FaceId]*retxSuppressionWindow),
	}
}

// SuppressResult classifies interest arrival against the accumulated
// window for (pitEntry, face).
func (r *RetxSuppressionExponentialPerFace) SuppressResult(pitEntry table.PitEntry, face defn.FaceId, now time.Time) RetxSuppressionResult {
	byFace, ok := r.windows[pitEntry.Token()]
	if !ok {
		byFace = make(map[defn.FaceId]*retxSuppressionWindow)
		r.windows[pitEntry.Token()] = byFace
	}
	if _, ok := pitEntry.OutRecords()[face]; !ok {
		w := r.opts.firstWindow(now)
		byFace[face] = &w
		return RetxSuppressionNew
	}
	w, ok := byFace[face]
	if !ok {
		w2 := r.opts.firstWindow(now)
		w = &w2
		byFace[face] = w
		return RetxSuppressionForward
	}
	return r.opts.classify(w, now)
}

// Erase drops every window accumulated for pitEntry.
func (r *RetxSuppressionExponentialPerFace) Erase(pitEntry table.PitEntry) {
	delete(r.windows, pitEntry.Token())
}
