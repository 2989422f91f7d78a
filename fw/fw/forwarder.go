/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package fw ties the tables, faces, and strategies together: the Forwarder
// runs the incoming/outgoing pipelines an Interest, Data, or Nack passes
// through, and dispatches to the per-prefix strategy at the decision
// points.
package fw

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/face"
	"github.com/named-data/yanfd/fw/scheduler"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
	"github.com/named-data/yanfd/std/ndn"
)

// ContentStore is the narrow interface the incoming-Interest pipeline
// consults for cached Data. This core ships no Content Store; callers may
// plug one in. A hit must honor the Interest's selectors, including
// MustBeFresh.
type ContentStore interface {
	Find(interest *defn.FwInterest) (*defn.FwData, bool)
}

// Forwarder owns one complete forwarding plane: the scheduler that runs
// its single event loop, the tables, and the installed strategy instances.
// Nothing here is a process-wide singleton, so tests can run several
// Forwarders side by side.
type Forwarder struct {
	cfg core.Config

	Sched          *scheduler.Scheduler
	Faces          *face.Table
	Fib            *table.Fib
	Pit            *table.Pit
	Measurements   *table.Measurements
	StrategyChoice *table.StrategyChoice
	DeadNonceList  *table.DeadNonceList
	Cs             ContentStore

	strategies map[string]Strategy
	pitTimers  map[uint32]scheduler.EventId
}

// NewForwarder constructs a Forwarder with its own wall-clock scheduler
// and the default strategy from cfg bound to the root prefix.
func NewForwarder(cfg core.Config, faces *face.Table) (*Forwarder, error) {
	return NewForwarderWithScheduler(cfg, faces, scheduler.New())
}

// NewForwarderWithScheduler is NewForwarder with a caller-supplied
// scheduler, for tests that drive virtual time.
func NewForwarderWithScheduler(cfg core.Config, faces *face.Table, sched *scheduler.Scheduler) (*Forwarder, error) {
	cfg = cfg.WithDefaults()
	f := &Forwarder{
		cfg:            cfg,
		Sched:          sched,
		Faces:          faces,
		Fib:            table.NewFib(),
		Pit:            table.NewPit(sched),
		Measurements:   table.NewMeasurements(sched),
		StrategyChoice: table.NewStrategyChoice(),
		DeadNonceList:  table.NewDeadNonceList(cfg.DeadNonceList.Lifetime, cfg.DeadNonceList.Capacity, sched),
		strategies:     make(map[string]Strategy),
		pitTimers:      make(map[uint32]scheduler.EventId),
	}

	faces.OnBeforeRemove(f.beforeRemoveFace)

	defaultName, err := enc.NameFromStr(cfg.Fw.DefaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("default strategy name: %w", err)
	}
	if err := f.SetStrategy(enc.Name{}, defaultName); err != nil {
		return nil, fmt.Errorf("default strategy: %w", err)
	}
	return f, nil
}

// Returns a string identifying the forwarder for logging.
func (f *Forwarder) String() string {
	return "forwarder"
}

// Config returns the forwarder's effective configuration.
func (f *Forwarder) Config() core.Config {
	return f.cfg
}

// InstantiateStrategy constructs a strategy instance from a Name under
// /localhost/nfd/strategy. A missing version component selects the newest
// registered version; an unknown strategy, unsupported version, or
// parameter the strategy rejects surfaces as an error and leaves the
// tables untouched.
func (f *Forwarder) InstantiateStrategy(name enc.Name) (Strategy, error) {
	if !defn.STRATEGY_PREFIX.IsPrefix(name) || len(name) < 4 {
		return nil, fmt.Errorf("%w: %s", ndn.ErrStrategyNotInstalled, name)
	}
	short := string(name[3].Val)
	versions, ok := strategyRegistry[short]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ndn.ErrStrategyNotInstalled, short)
	}

	var params enc.Name
	var version uint64
	if len(name) >= 5 && name[4].IsVersion() {
		version = name[4].NumberVal()
		params = name[5:]
	} else {
		for v := range versions {
			if v > version {
				version = v
			}
		}
		params = name[4:]
	}
	factory, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s version %d", ndn.ErrStrategyVersion, short, version)
	}

	instanceName := defn.STRATEGY_PREFIX.
		Append(enc.NewGenericComponent(short), enc.NewVersionComponent(version)).
		Append(params...)
	return factory(f, instanceName)
}

// InstallStrategy stores an instance in the forwarder's registry so
// SetStrategy can bind prefixes to it by Name.
func (f *Forwarder) InstallStrategy(s Strategy) {
	f.strategies[s.Name().String()] = s
}

// SetStrategy binds prefix to the strategy named strategyName,
// instantiating and installing it on first use. In-flight PIT entries keep
// their originally-chosen strategy.
func (f *Forwarder) SetStrategy(prefix enc.Name, strategyName enc.Name) error {
	s, ok := f.strategies[strategyName.String()]
	if !ok {
		inst, err := f.InstantiateStrategy(strategyName)
		if err != nil {
			return err
		}
		f.InstallStrategy(inst)
		s = inst
	}
	f.StrategyChoice.Insert(prefix, s)
	return nil
}

// UnsetStrategy removes the strategy choice at exactly prefix.
func (f *Forwarder) UnsetStrategy(prefix enc.Name) {
	f.StrategyChoice.Erase(prefix)
}

func (f *Forwarder) effectiveStrategy(name enc.Name) Strategy {
	e := f.StrategyChoice.FindEffectiveStrategy(name)
	if e == nil {
		return nil
	}
	s, _ := e.(Strategy)
	return s
}

// strategyFor resolves the strategy a PIT entry was bound to at creation.
func (f *Forwarder) strategyFor(pitEntry table.PitEntry) Strategy {
	if s, ok := f.strategies[pitEntry.StrategyName().String()]; ok {
		return s
	}
	return f.effectiveStrategy(pitEntry.EncName())
}

func (f *Forwarder) newNonce() uint32 {
	return rand.Uint32()
}

// beforeRemoveFace purges every non-owning reference to the departing face
// before any later event can observe its FaceId.
func (f *Forwarder) beforeRemoveFace(fc face.Face) {
	id := fc.FaceId()
	core.Log.Debug(f, "Removing face state", "faceid", id)
	for _, s := range f.strategies {
		s.BeforeRemoveFace(id)
	}
	f.Fib.RemoveNextHopsForFace(id)
	for _, entry := range f.Pit.All() {
		entry.DeleteInRecord(id)
		entry.DeleteOutRecord(id)
	}
}

// AddRoute inserts (prefix, face, cost) into the Fib and fires
// AfterNewNextHop on the strategy of every PIT entry under prefix, so a
// strategy that Nacked for lack of a route can pick the new one up.
func (f *Forwarder) AddRoute(prefix enc.Name, faceId defn.FaceId, cost uint64) {
	entry, _ := f.Fib.Insert(prefix)
	f.Fib.AddOrUpdateNextHop(entry, faceId, cost)
	for _, pe := range f.Pit.All() {
		if prefix.IsPrefix(pe.EncName()) {
			f.strategyFor(pe).AfterNewNextHop(faceId, pe)
		}
	}
}

// OnIncomingInterest is the incoming-Interest pipeline. A
// face layer delivers every received Interest here.
func (f *Forwarder) OnIncomingInterest(inFaceId defn.FaceId, interest *defn.FwInterest, pitToken []byte) {
	inFace := f.Faces.Get(inFaceId)
	if inFace == nil {
		return
	}
	core.Log.Trace(f, "OnIncomingInterest", "name", interest.NameV, "faceid", inFaceId)

	if IsLocalhost(interest.NameV) && inFace.Scope() != defn.Local {
		core.Log.Debug(f, "Dropping Interest violating localhost scope", "name", interest.NameV, "faceid", inFaceId)
		return
	}

	if !interest.NonceV.IsSet() {
		interest.NonceV.Set(f.newNonce())
	}
	nonce := interest.NonceV.Unwrap()

	if f.DeadNonceList.Has(interest.NameV, nonce) {
		f.onInterestLoop(inFaceId, interest, pitToken)
		return
	}

	strategy := f.effectiveStrategy(interest.NameV)
	if strategy == nil {
		core.Log.Warn(f, "No effective strategy for Interest", "name", interest.NameV)
		return
	}

	pitEntry, created := f.Pit.Insert(interest, strategy.Name())
	if !created {
		strategy = f.strategyFor(pitEntry)
		where := FindDuplicateNonce(pitEntry, nonce, inFaceId)
		if where&(DuplicateNonceInSame|DuplicateNonceOutSame) != 0 {
			f.onInterestLoop(inFaceId, interest, pitToken)
			return
		}
		if where != DuplicateNonceNone {
			// another downstream already expressed this Nonce; remember
			// this one for the response fan-out but do not forward again
			pitEntry.InsertInRecord(interest, inFaceId, pitToken)
			f.refreshPitExpiry(pitEntry)
			return
		}
	}

	pitEntry.InsertInRecord(interest, inFaceId, pitToken)
	f.refreshPitExpiry(pitEntry)

	if f.Cs != nil {
		if data, ok := f.Cs.Find(interest); ok {
			core.Log.Trace(f, "Content Store hit", "name", interest.NameV)
			strategy.AfterContentStoreHit(pitEntry, data, inFaceId)
			pitEntry.SetSatisfied(true)
			pitEntry.ClearInRecords()
			f.SetExpiryTimer(pitEntry, f.cfg.Pit.StragglerTimeout)
			return
		}
	}

	nexthops := f.Fib.FindLongestPrefixMatch(interest.NameV).GetNextHops()
	strategy.AfterReceiveInterest(pitEntry, interest, inFaceId, nexthops)
}

func (f *Forwarder) onInterestLoop(inFaceId defn.FaceId, interest *defn.FwInterest, pitToken []byte) {
	core.Log.Debug(f, "Looping Interest", "name", interest.NameV, "faceid", inFaceId)
	strategy := f.effectiveStrategy(interest.NameV)
	if strategy == nil {
		return
	}
	strategy.OnInterestLoop(interest, inFaceId)
}

// refreshPitExpiry recomputes the entry expiry from its in-records and
// (re)arms the finalize timer at expiry plus the straggler grace period.
func (f *Forwarder) refreshPitExpiry(pitEntry table.PitEntry) {
	expiry, ok := pitEntry.RecomputeExpiry()
	if !ok {
		return
	}
	f.SetExpiryTimer(pitEntry, expiry.Sub(f.Sched.Now())+f.cfg.Pit.StragglerTimeout)
}

// SetExpiryTimer reschedules the entry's finalize timer to fire after d.
// Strategies use this to retain an entry past its last in-record or to hasten its death.
func (f *Forwarder) SetExpiryTimer(pitEntry table.PitEntry, d time.Duration) {
	tok := pitEntry.Token()
	if ev, ok := f.pitTimers[tok]; ok {
		f.Sched.Cancel(ev)
	}
	f.pitTimers[tok] = f.Sched.Schedule(d, func() {
		f.onInterestFinalize(pitEntry)
	})
}

// onInterestFinalize is the Interest finalize pipeline: record the
// outstanding Nonces in the DeadNonceList so late loops are still caught,
// release strategy state, and erase the entry.
func (f *Forwarder) onInterestFinalize(pitEntry table.PitEntry) {
	if f.Pit.Find(pitEntry.InterestTemplate()) != pitEntry {
		// already finalized through another path
		return
	}
	core.Log.Trace(f, "OnInterestFinalize", "name", pitEntry.EncName())

	outNonces := make(map[uint32]struct{}, len(pitEntry.OutRecords()))
	for _, rec := range pitEntry.OutRecords() {
		outNonces[rec.LatestNonce] = struct{}{}
		f.DeadNonceList.Add(pitEntry.EncName(), rec.LatestNonce)
	}
	for _, rec := range pitEntry.InRecords() {
		if _, ok := outNonces[rec.LatestNonce]; !ok {
			f.DeadNonceList.Add(pitEntry.EncName(), rec.LatestNonce)
		}
	}

	if s := f.strategyFor(pitEntry); s != nil {
		s.BeforeErasePitEntry(pitEntry)
	}

	tok := pitEntry.Token()
	if ev, ok := f.pitTimers[tok]; ok {
		f.Sched.Cancel(ev)
		delete(f.pitTimers, tok)
	}
	f.Pit.Erase(pitEntry)
}

// RejectPendingInterest finalizes the entry immediately; strategies call
// this when no upstream can satisfy it.
func (f *Forwarder) RejectPendingInterest(pitEntry table.PitEntry) {
	f.onInterestFinalize(pitEntry)
}

// earliestInRecord returns the in-record with the oldest arrival, the
// downstream whose scope governs the outgoing scope check.
func earliestInRecord(pitEntry table.PitEntry) *table.PitInRecord {
	var earliest *table.PitInRecord
	for _, rec := range pitEntry.InRecords() {
		if earliest == nil || rec.LatestTimestamp.Before(earliest.LatestTimestamp) {
			earliest = rec
		}
	}
	return earliest
}

// SendInterest is the outgoing-Interest pipeline, invoked by
// strategies through the façade. It refuses scope violations and duplicate
// sends, maintains the out-record, and transmits. wantNewNonce forces a
// fresh Nonce (a probe); otherwise the latest downstream Nonce is reused.
// Returns the out-record, or nil if the send was refused.
func (f *Forwarder) SendInterest(pitEntry table.PitEntry, outFaceId defn.FaceId, wantNewNonce bool) *table.PitOutRecord {
	outFace := f.Faces.Get(outFaceId)
	if outFace == nil {
		core.Log.Debug(f, "Refusing send to nonexistent face", "name", pitEntry.EncName(), "faceid", outFaceId)
		return nil
	}

	inScope := defn.NonLocal
	if rec := earliestInRecord(pitEntry); rec != nil {
		if inFace := f.Faces.Get(rec.Face); inFace != nil {
			inScope = inFace.Scope()
		}
	}
	if WouldViolateScope(pitEntry.EncName(), inScope, outFace.Scope()) {
		core.Log.Debug(f, "Refusing send violating scope", "name", pitEntry.EncName(), "faceid", outFaceId)
		return nil
	}

	now := f.Sched.Now()
	if HasUnexpiredOutRecord(pitEntry, outFaceId, now) && !wantNewNonce {
		// last-line duplicate stop; suppression proper is the strategy's job
		core.Log.Debug(f, "Refusing duplicate send", "name", pitEntry.EncName(), "faceid", outFaceId)
		return nil
	}

	var nonce uint32
	haveNonce := false
	if !wantNewNonce {
		var latest *table.PitInRecord
		for _, rec := range pitEntry.InRecords() {
			if latest == nil || rec.LatestTimestamp.After(latest.LatestTimestamp) {
				latest = rec
			}
		}
		if latest != nil {
			nonce, haveNonce = latest.LatestNonce, true
		}
	}
	if !haveNonce {
		nonce = f.newNonce()
	}

	interest := *pitEntry.InterestTemplate()
	interest.NonceV.Set(nonce)

	rec, _ := pitEntry.InsertOutRecord(&interest, outFaceId)
	core.Log.Trace(f, "SendInterest", "name", interest.NameV, "faceid", outFaceId, "nonce", nonce)
	if err := outFace.SendInterest(&interest, nil); err != nil {
		core.Log.Debug(f, "Failed to send Interest", "faceid", outFaceId, "err", err)
	}
	return rec
}

// OnIncomingData is the incoming-Data pipeline. A face layer
// delivers every received Data here.
func (f *Forwarder) OnIncomingData(inFaceId defn.FaceId, data *defn.FwData, pitToken []byte) {
	inFace := f.Faces.Get(inFaceId)
	if inFace == nil {
		return
	}
	core.Log.Trace(f, "OnIncomingData", "name", data.NameV, "faceid", inFaceId)

	if IsLocalhost(data.NameV) && inFace.Scope() != defn.Local {
		core.Log.Debug(f, "Dropping Data violating localhost scope", "name", data.NameV, "faceid", inFaceId)
		return
	}

	matches := f.Pit.FindAllDataMatches(data)
	if len(matches) == 0 {
		core.Log.Debug(f, "Dropping unsolicited Data", "name", data.NameV, "faceid", inFaceId)
		return
	}

	for _, pitEntry := range matches {
		strategy := f.strategyFor(pitEntry)
		pitEntry.SetSatisfied(true)
		if strategy != nil {
			strategy.BeforeSatisfyInterest(pitEntry, data, inFaceId)
			strategy.AfterReceiveData(pitEntry, data, inFaceId)
		}
		for _, rec := range pitEntry.InRecords() {
			if rec.Face == inFaceId {
				continue
			}
			f.SendData(pitEntry, data, rec.Face, inFaceId)
		}
		pitEntry.ClearInRecords()
		f.SetExpiryTimer(pitEntry, f.cfg.Pit.StragglerTimeout)
	}
}

// SendData is the outgoing-Data pipeline: deliver data to outFaceId,
// carrying back the exact PIT token that downstream attached to its
// Interest. dataInFaceId identifies the producing face (or
// ContentStoreFaceId) and is only used for logging.
func (f *Forwarder) SendData(pitEntry table.PitEntry, data *defn.FwData, outFaceId defn.FaceId, dataInFaceId defn.FaceId) {
	outFace := f.Faces.Get(outFaceId)
	if outFace == nil {
		return
	}
	if IsLocalhost(data.NameV) && outFace.Scope() != defn.Local {
		return
	}
	var token []byte
	if rec, ok := pitEntry.InRecords()[outFaceId]; ok {
		token = rec.PitToken
	}
	core.Log.Trace(f, "SendData", "name", data.NameV, "faceid", outFaceId, "from", dataInFaceId)
	if err := outFace.SendData(data, token); err != nil {
		core.Log.Debug(f, "Failed to send Data", "faceid", outFaceId, "err", err)
	}
}

// OnIncomingNack is the incoming-Nack pipeline. The Nack
// must carry the Nonce of an existing out-record on the arrival face.
func (f *Forwarder) OnIncomingNack(inFaceId defn.FaceId, nack *defn.FwNack, pitToken []byte) {
	inFace := f.Faces.Get(inFaceId)
	if inFace == nil || nack.Interest == nil {
		return
	}
	core.Log.Trace(f, "OnIncomingNack", "name", nack.Interest.NameV, "faceid", inFaceId, "reason", nack.Reason)

	if inFace.LinkType() == defn.MultiAccess {
		core.Log.Debug(f, "Dropping Nack from multi-access face", "faceid", inFaceId)
		return
	}

	pitEntry := f.Pit.Find(nack.Interest)
	if pitEntry == nil {
		core.Log.Debug(f, "Dropping Nack for missing PIT entry", "name", nack.Interest.NameV)
		return
	}
	rec, ok := pitEntry.OutRecords()[inFaceId]
	if !ok || !nack.Interest.NonceV.IsSet() || rec.LatestNonce != nack.Interest.NonceV.Unwrap() {
		core.Log.Debug(f, "Dropping Nack not matching out-record", "name", nack.Interest.NameV, "faceid", inFaceId)
		return
	}

	rec.HasNack = true
	rec.NackReason = nack.Reason

	if strategy := f.strategyFor(pitEntry); strategy != nil {
		strategy.AfterReceiveNack(pitEntry, nack, inFaceId)
	}
}

// SendNack is the outgoing-Nack pipeline: it requires an in-record for
// outFaceId, deletes it (the strategy is declaring it will not satisfy
// this downstream), and emits the Nack carrying that record's last Nonce.
func (f *Forwarder) SendNack(pitEntry table.PitEntry, outFaceId defn.FaceId, reason defn.NackReason) {
	rec, ok := pitEntry.InRecords()[outFaceId]
	if !ok {
		core.Log.Debug(f, "Refusing Nack without in-record", "name", pitEntry.EncName(), "faceid", outFaceId)
		return
	}
	outFace := f.Faces.Get(outFaceId)
	if outFace == nil {
		return
	}

	interest := *pitEntry.InterestTemplate()
	interest.NonceV.Set(rec.LatestNonce)
	token := rec.PitToken
	pitEntry.DeleteInRecord(outFaceId)

	core.Log.Trace(f, "SendNack", "name", interest.NameV, "faceid", outFaceId, "reason", reason)
	if err := outFace.SendNack(&defn.FwNack{Interest: &interest, Reason: reason}, token); err != nil {
		core.Log.Debug(f, "Failed to send Nack", "faceid", outFaceId, "err", err)
	}
}

// SendNacks fans a Nack out to every downstream whose last
// Nonce matches some out-record Nonce.
func (f *Forwarder) SendNacks(pitEntry table.PitEntry, reason defn.NackReason) {
	outNonces := make(map[uint32]struct{}, len(pitEntry.OutRecords()))
	for _, rec := range pitEntry.OutRecords() {
		outNonces[rec.LatestNonce] = struct{}{}
	}
	downstreams := make([]defn.FaceId, 0, len(pitEntry.InRecords()))
	for faceId, rec := range pitEntry.InRecords() {
		if _, ok := outNonces[rec.LatestNonce]; ok {
			downstreams = append(downstreams, faceId)
		}
	}
	for _, faceId := range downstreams {
		f.SendNack(pitEntry, faceId, reason)
	}
}

// sendNackToFace emits a Nack answering interest outside any PIT entry,
// used by OnInterestLoop where the looping arrival never created a record.
func (f *Forwarder) sendNackToFace(interest *defn.FwInterest, outFaceId defn.FaceId, reason defn.NackReason) {
	outFace := f.Faces.Get(outFaceId)
	if outFace == nil {
		return
	}
	core.Log.Trace(f, "SendNack", "name", interest.NameV, "faceid", outFaceId, "reason", reason)
	if err := outFace.SendNack(&defn.FwNack{Interest: interest, Reason: reason}, nil); err != nil {
		core.Log.Debug(f, "Failed to send Nack", "faceid", outFaceId, "err", err)
	}
}

// NexthopEligible reports whether nexthop may carry pitEntry's Interest
// that arrived from inFaceId: it is not the downstream itself, the face
// still exists, forwarding would not violate scope, and (if wantUnused)
// it has no unexpired out-record.
func (f *Forwarder) NexthopEligible(pitEntry table.PitEntry, inFaceId defn.FaceId, nexthop defn.FaceId, wantUnused bool) bool {
	if nexthop == inFaceId {
		return false
	}
	outFace := f.Faces.Get(nexthop)
	if outFace == nil {
		return false
	}
	inScope := defn.NonLocal
	if inFace := f.Faces.Get(inFaceId); inFace != nil {
		inScope = inFace.Scope()
	}
	if WouldViolateScope(pitEntry.EncName(), inScope, outFace.Scope()) {
		return false
	}
	if wantUnused && HasUnexpiredOutRecord(pitEntry, nexthop, f.Sched.Now()) {
		return false
	}
	return true
}
