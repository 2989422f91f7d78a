/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import (
	"time"

	"bytes"

	"github.com/named-data/yanfd/fw/defn"
	enc "github.com/named-data/yanfd/std/encoding"
	"github.com/named-data/yanfd/std/types/optional"
)

// PitInRecord is per-face downstream state on a PIT entry: when that face
// most recently expressed this Interest, and with what Nonce/token/expiry.
type PitInRecord struct {
	Face            defn.FaceId
	LatestNonce     uint32
	LatestTimestamp time.Time
	ExpirationTime  time.Time
	PitToken        []byte
	// IsNonDiscovery marks this arrival as having followed a learned,
	// non-broadcast path (self-learning strategy).
	IsNonDiscovery bool
}

// PitOutRecord is per-face upstream state on a PIT entry: the most recent
// Interest this router sent that face for this entry, and any Nack it
// brought back.
type PitOutRecord struct {
	Face            defn.FaceId
	LatestNonce     uint32
	LatestTimestamp time.Time
	ExpirationTime  time.Time
	NackReason      defn.NackReason
	HasNack         bool
	// IsNonDiscovery mirrors PitInRecord's flag on the upstream side
	// (self-learning strategy).
	IsNonDiscovery bool
	// strategy-specific bookkeeping (retx-suppression state, RTO timers)
	// is attached out-of-band by FaceId via the owning strategy, not
	// stored here, since only one strategy ever touches a given PIT entry.
}

// basePitEntry is one outstanding Interest-shape: a canonical Interest
// (Name + selectors + ForwardingHint), the downstreams (in-records) that
// asked for it, and the upstreams (out-records) it was forwarded to.
type basePitEntry struct {
	encname           enc.Name
	canBePrefix       bool
	mustBeFresh       bool
	forwardingHintNew enc.Name

	minSuffixComponents optional.Optional[int]
	maxSuffixComponents optional.Optional[int]
	childSelector       optional.Optional[int]
	exclude             []byte
	pubKeyLocator       []byte

	inRecords  map[uint64]*PitInRecord
	outRecords map[uint64]*PitOutRecord

	expirationTime time.Time
	satisfied      bool
	token          uint32
	strategyName   enc.Name

	// template is a clone of the first Interest that created this entry,
	// Nonce cleared, kept so the outgoing-Interest pipeline and strategies
	// can (re)send a canonical Interest upstream without the original
	// caller's packet still being in scope.
	template *defn.FwInterest

	// nowFn is inherited from the owning Pit so record timestamps follow
	// the same clock as the scheduler; nil falls back to wall time.
	nowFn func() time.Time
}

func (e *basePitEntry) now() time.Time {
	if e.nowFn != nil {
		return e.nowFn()
	}
	return time.Now()
}

// InterestTemplate returns the canonical Interest to (re)send upstream for
// this entry, with no Nonce set; the outgoing pipeline assigns one.
func (e *basePitEntry) InterestTemplate() *defn.FwInterest {
	return e.template
}

// selectorsEqual reports whether two Interests carry identical PIT-keying
// selectors: an Interest matches an existing entry only when its selectors
// and ForwardingHint all equal those of the stored canonical Interest.
func selectorsEqual(a, b *defn.FwInterest) bool {
	if a.CanBePrefixV != b.CanBePrefixV || a.MustBeFreshV != b.MustBeFreshV {
		return false
	}
	if av, aok := a.MinSuffixComponentsV.Get(); true {
		bv, bok := b.MinSuffixComponentsV.Get()
		if aok != bok || (aok && av != bv) {
			return false
		}
	}
	if av, aok := a.MaxSuffixComponentsV.Get(); true {
		bv, bok := b.MaxSuffixComponentsV.Get()
		if aok != bok || (aok && av != bv) {
			return false
		}
	}
	if av, aok := a.ChildSelectorV.Get(); true {
		bv, bok := b.ChildSelectorV.Get()
		if aok != bok || (aok && av != bv) {
			return false
		}
	}
	if !bytes.Equal(a.ExcludeV, b.ExcludeV) {
		return false
	}
	if !bytes.Equal(a.PublisherPublicKeyLoc, b.PublisherPublicKeyLoc) {
		return false
	}
	if !a.ForwardingHintV.Equal(b.ForwardingHintV) {
		return false
	}
	return true
}

// EncName returns the entry's canonical Interest Name.
func (e *basePitEntry) EncName() enc.Name { return e.encname }

// CanBePrefix reports the entry's CanBePrefix selector.
func (e *basePitEntry) CanBePrefix() bool { return e.canBePrefix }

// MustBeFresh reports the entry's MustBeFresh selector.
func (e *basePitEntry) MustBeFresh() bool { return e.mustBeFresh }

// ForwardingHintNew returns the entry's ForwardingHint.
func (e *basePitEntry) ForwardingHintNew() enc.Name { return e.forwardingHintNew }

// InRecords returns the entry's downstream records, keyed by FaceId.
func (e *basePitEntry) InRecords() map[uint64]*PitInRecord { return e.inRecords }

// OutRecords returns the entry's upstream records, keyed by FaceId.
func (e *basePitEntry) OutRecords() map[uint64]*PitOutRecord { return e.outRecords }

// ExpirationTime returns when this entry should be erased absent renewal.
func (e *basePitEntry) ExpirationTime() time.Time { return e.expirationTime }

func (e *basePitEntry) setExpirationTime(t time.Time) { e.expirationTime = t }

// Satisfied reports whether a matching Data has already been delivered.
func (e *basePitEntry) Satisfied() bool { return e.satisfied }

// SetSatisfied marks whether a matching Data has already been delivered.
func (e *basePitEntry) SetSatisfied(v bool) { e.satisfied = v }

// Token returns the entry's internal PIT token (distinct from any
// downstream's wire PIT token, which is carried per-in-record instead).
func (e *basePitEntry) Token() uint32 { return e.token }

// StrategyName returns the Name of the strategy chosen for this entry at
// insertion time. In-flight PIT entries keep their originally-chosen
// strategy even if StrategyChoice later changes.
func (e *basePitEntry) StrategyName() enc.Name { return e.strategyName }

// ClearInRecords removes every downstream record.
func (e *basePitEntry) ClearInRecords() {
	e.inRecords = make(map[uint64]*PitInRecord)
}

// ClearOutRecords removes every upstream record.
func (e *basePitEntry) ClearOutRecords() {
	e.outRecords = make(map[uint64]*PitOutRecord)
}

// InsertInRecord inserts or updates the in-record for face, returning the
// record, whether one already existed, and (if so) its previous Nonce.
func (e *basePitEntry) InsertInRecord(
	interest *defn.FwInterest,
	face defn.FaceId,
	pitToken []byte,
) (*PitInRecord, bool, uint32) {
	now := e.now()
	nonce := interest.NonceV.GetOr(0)
	expiry := now.Add(interest.Lifetime())

	if rec, ok := e.inRecords[face]; ok {
		prevNonce := rec.LatestNonce
		rec.LatestNonce = nonce
		rec.LatestTimestamp = now
		rec.ExpirationTime = expiry
		rec.PitToken = pitToken
		return rec, true, prevNonce
	}

	rec := &PitInRecord{
		Face:            face,
		LatestNonce:     nonce,
		LatestTimestamp: now,
		ExpirationTime:  expiry,
		PitToken:        pitToken,
	}
	e.inRecords[face] = rec
	return rec, false, 0
}

// DeleteInRecord removes the in-record for face, if any.
func (e *basePitEntry) DeleteInRecord(face defn.FaceId) {
	delete(e.inRecords, face)
}

// InsertOutRecord inserts or updates the out-record for face, returning
// the record and whether one already existed.
func (e *basePitEntry) InsertOutRecord(
	interest *defn.FwInterest,
	face defn.FaceId,
) (*PitOutRecord, bool) {
	now := e.now()
	nonce := interest.NonceV.GetOr(0)
	expiry := now.Add(interest.Lifetime())

	if rec, ok := e.outRecords[face]; ok {
		rec.LatestNonce = nonce
		rec.LatestTimestamp = now
		rec.ExpirationTime = expiry
		rec.HasNack = false
		rec.NackReason = defn.NackReasonNone
		return rec, true
	}

	rec := &PitOutRecord{
		Face:            face,
		LatestNonce:     nonce,
		LatestTimestamp: now,
		ExpirationTime:  expiry,
	}
	e.outRecords[face] = rec
	return rec, false
}

// DeleteOutRecord removes the out-record for face, if any.
func (e *basePitEntry) DeleteOutRecord(face defn.FaceId) {
	delete(e.outRecords, face)
}

// RecomputeExpiry sets ExpirationTime to the max of all in-record
// expiries; if there are none, the caller (Forwarder/strategy) must
// instead arm the straggler timer.
func (e *basePitEntry) RecomputeExpiry() (time.Time, bool) {
	var max time.Time
	found := false
	for _, r := range e.inRecords {
		if !found || r.ExpirationTime.After(max) {
			max = r.ExpirationTime
			found = true
		}
	}
	if found {
		e.expirationTime = max
	}
	return max, found
}

// PitEntry is the read/write view of a PIT entry strategies and the
// Forwarder operate on.
type PitEntry interface {
	EncName() enc.Name
	CanBePrefix() bool
	MustBeFresh() bool
	ForwardingHintNew() enc.Name
	InRecords() map[uint64]*PitInRecord
	OutRecords() map[uint64]*PitOutRecord
	ExpirationTime() time.Time
	Satisfied() bool
	Token() uint32
	StrategyName() enc.Name
	SetSatisfied(bool)
	ClearInRecords()
	ClearOutRecords()
	InsertInRecord(interest *defn.FwInterest, face defn.FaceId, pitToken []byte) (*PitInRecord, bool, uint32)
	DeleteInRecord(face defn.FaceId)
	InsertOutRecord(interest *defn.FwInterest, face defn.FaceId) (*PitOutRecord, bool)
	DeleteOutRecord(face defn.FaceId)
	RecomputeExpiry() (time.Time, bool)
	InterestTemplate() *defn.FwInterest
}
