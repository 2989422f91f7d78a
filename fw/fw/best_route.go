/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// BestRoute forwards a new Interest to the lowest-cost eligible next hop.
// Retransmissions pass through exponential suppression and, when allowed,
// rotate to the eligible next hop after the one used last, wrapping
// around.
type BestRoute struct {
	StrategyBase
	retx *RetxSuppressionExponential
}

func init() {
	RegisterStrategy("best-route", 5, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		opts, err := parseRetxSuppressionParams(instanceName[5:])
		if err != nil {
			return nil, err
		}
		return &BestRoute{
			StrategyBase: NewStrategyBase(fw, instanceName),
			retx:         NewRetxSuppressionExponential(opts),
		}, nil
	})
}

// Returns a string identifying this strategy for logging.
func (s *BestRoute) String() string {
	return "best-route"
}

// AfterReceiveInterest forwards to the lowest-cost eligible next hop for a
// new entry; for a retransmission that survives suppression, to the next
// eligible hop after the one most recently used.
func (s *BestRoute) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	now := s.Fw.Sched.Now()

	switch s.retx.SuppressResult(pitEntry, now) {
	case RetxSuppressionNew:
		for _, nh := range nexthops {
			if !s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
				continue
			}
			s.Fw.SendInterest(pitEntry, nh.Nexthop, false)
			return
		}
		core.Log.Debug(s, "No eligible nexthop", "name", interest.NameV)
		s.Fw.SendNack(pitEntry, inFace, defn.NackReasonNoRoute)
		s.Fw.RejectPendingInterest(pitEntry)

	case RetxSuppressionSuppress:
		core.Log.Debug(s, "Suppressed retransmission", "name", interest.NameV, "faceid", inFace)

	case RetxSuppressionForward:
		start := s.lastUsedIndex(pitEntry, nexthops)
		for i := 1; i <= len(nexthops); i++ {
			nh := nexthops[(start+i)%len(nexthops)]
			if !s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, false) {
				continue
			}
			// an upstream already carrying an unexpired out-record gets a
			// fresh-Nonce probe so the outgoing pipeline lets it through
			wantNewNonce := HasUnexpiredOutRecord(pitEntry, nh.Nexthop, now)
			s.Fw.SendInterest(pitEntry, nh.Nexthop, wantNewNonce)
			return
		}
		core.Log.Debug(s, "No eligible nexthop for retransmission", "name", interest.NameV)
	}
}

// lastUsedIndex locates the nexthop whose out-record was renewed most
// recently, so rotation can continue after it.
func (s *BestRoute) lastUsedIndex(pitEntry table.PitEntry, nexthops []*table.FibNextHopEntry) int {
	var last *table.PitOutRecord
	for _, rec := range pitEntry.OutRecords() {
		if last == nil || rec.LatestTimestamp.After(last.LatestTimestamp) {
			last = rec
		}
	}
	if last == nil {
		return len(nexthops) - 1
	}
	for i, nh := range nexthops {
		if nh.Nexthop == last.Face {
			return i
		}
	}
	return len(nexthops) - 1
}

// BeforeErasePitEntry drops the suppression window accumulated for the
// entry.
func (s *BestRoute) BeforeErasePitEntry(pitEntry table.PitEntry) {
	s.retx.Erase(pitEntry)
}
