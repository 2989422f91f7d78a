/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// Strategy is the pluggable per-prefix forwarding policy every reference
// strategy (best-route, multicast, access, asf, ncc, random, self-learning)
// implements. Each method corresponds to one trigger the
// forwarding pipeline reaches out to the installed strategy for the
// Interest's effective prefix; a strategy that has nothing to say about a
// given trigger embeds StrategyBase to inherit the documented default.
type Strategy interface {
	table.StrategyEntry // Name() enc.Name

	// AfterReceiveInterest must be overridden: the default is undefined.
	AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry)
	// AfterContentStoreHit defaults to sending data to inFace.
	AfterContentStoreHit(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId)
	// BeforeSatisfyInterest defaults to a no-op.
	BeforeSatisfyInterest(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId)
	// AfterReceiveData defaults to a no-op: the Forwarder pipeline itself
	// forwards the Data to all downstreams and satisfies the entry
	// unconditionally, so this hook is only for measurement/state
	// bookkeeping a strategy wants to do alongside it.
	AfterReceiveData(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId)
	// AfterReceiveNack defaults to ProcessNackTraits's combine-and-reflect
	// handling (with its live-deadlock break).
	AfterReceiveNack(pitEntry table.PitEntry, nack *defn.FwNack, inFace defn.FaceId)
	// OnInterestLoop defaults to sending Nack(Duplicate) to inFace.
	OnInterestLoop(interest *defn.FwInterest, inFace defn.FaceId)
	// AfterNewNextHop defaults to a no-op.
	AfterNewNextHop(nexthop defn.FaceId, pitEntry table.PitEntry)
	// BeforeRemoveFace defaults to a no-op; strategies that index state by
	// FaceId must override this to purge it.
	BeforeRemoveFace(face defn.FaceId)
	// BeforeErasePitEntry defaults to a no-op; strategies that keep
	// per-entry state (timers, suppression windows) release it here, the
	// analog of destroying the entry's strategy-info block.
	BeforeErasePitEntry(pitEntry table.PitEntry)
}

// StrategyBase supplies the documented defaults every concrete strategy
// embeds, plus the handles (Forwarder access, a Measurements accessor
// scoped to this strategy instance) common to all of them. Overriding a
// trigger means shadowing the embedded method, not interface dispatch.
type StrategyBase struct {
	Fw           *Forwarder
	InstanceName enc.Name
	Measurements *table.MeasurementsAccessor
}

// NewStrategyBase wires up the common strategy plumbing: a Measurements
// accessor scoped to instanceName so the owning strategy's state is
// automatically purged if StrategyChoice is repointed elsewhere.
func NewStrategyBase(fw *Forwarder, instanceName enc.Name) StrategyBase {
	return StrategyBase{
		Fw:           fw,
		InstanceName: instanceName,
		Measurements: table.NewMeasurementsAccessor(fw.Measurements, fw.StrategyChoice, instanceName),
	}
}

// Name returns the strategy instance's registered Name.
func (s *StrategyBase) Name() enc.Name { return s.InstanceName }

// AfterContentStoreHit sends data to inFace, per the documented default.
// No reference strategy overrides this.
func (s *StrategyBase) AfterContentStoreHit(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
	s.Fw.SendData(pitEntry, data, inFace, defn.ContentStoreFaceId)
}

// BeforeSatisfyInterest is a no-op default.
func (s *StrategyBase) BeforeSatisfyInterest(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
}

// AfterReceiveData is a no-op default; strategies override this when they
// need to track RTT or mark a face as known-working.
func (s *StrategyBase) AfterReceiveData(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
}

// AfterReceiveNack combines upstream Nacks and reflects or deadlock-breaks
// downstream, via ProcessNackTraits.
func (s *StrategyBase) AfterReceiveNack(pitEntry table.PitEntry, nack *defn.FwNack, inFace defn.FaceId) {
	NewProcessNackTraits(s.Fw).ProcessNack(pitEntry, inFace, nack)
}

// OnInterestLoop sends Nack(Duplicate) to inFace, per the documented
// default.
func (s *StrategyBase) OnInterestLoop(interest *defn.FwInterest, inFace defn.FaceId) {
	s.Fw.sendNackToFace(interest, inFace, defn.NackReasonDuplicate)
}

// AfterNewNextHop is a no-op default.
func (s *StrategyBase) AfterNewNextHop(nexthop defn.FaceId, pitEntry table.PitEntry) {}

// BeforeRemoveFace is a no-op default.
func (s *StrategyBase) BeforeRemoveFace(face defn.FaceId) {}

// BeforeErasePitEntry is a no-op default.
func (s *StrategyBase) BeforeErasePitEntry(pitEntry table.PitEntry) {}

// strategyFactory builds a Strategy instance bound to a specific
// Forwarder and fully-versioned instance Name (e.g.
// /localhost/nfd/strategy/best-route/v=5).
type strategyFactory func(fw *Forwarder, instanceName enc.Name) (Strategy, error)

// strategyRegistry maps a strategy's unversioned short name (e.g.
// "best-route") to its available version numbers and constructors.
var strategyRegistry = make(map[string]map[uint64]strategyFactory)

// RegisterStrategy adds a constructor for shortName at version ver to the
// global registry, called from each reference strategy's init().
func RegisterStrategy(shortName string, ver uint64, factory strategyFactory) {
	versions, ok := strategyRegistry[shortName]
	if !ok {
		versions = make(map[uint64]strategyFactory)
		strategyRegistry[shortName] = versions
	}
	versions[ver] = factory
}

// StrategyVersions returns the registered version numbers for shortName,
// for management-plane introspection.
func StrategyVersions(shortName string) []uint64 {
	versions, ok := strategyRegistry[shortName]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	return out
}
