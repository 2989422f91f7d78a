/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"time"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// PrefixAnnouncement is a validated announcement extracted from a Data
// packet: the prefix the producer is reachable under and how long the
// learned route may be kept.
type PrefixAnnouncement struct {
	Prefix         enc.Name
	ExpirationTime time.Duration
}

// PrefixAnnouncementValidator parses and validates the opaque announcement
// bytes a Data carries. Signature checking lives behind this function, in
// the caller's security machinery; the core only consumes the verdict.
type PrefixAnnouncementValidator func(data *defn.FwData) (PrefixAnnouncement, bool)

// SelfLearning floods a discovery Interest where no route exists, then
// learns a unicast route from the PrefixAnnouncement the first Data
// carries back.
type SelfLearning struct {
	StrategyBase
	Validator PrefixAnnouncementValidator
}

func init() {
	RegisterStrategy("self-learning", 1, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		if _, err := parseStrategyParams(instanceName[5:]); err != nil {
			return nil, err
		}
		return &SelfLearning{
			StrategyBase: NewStrategyBase(fw, instanceName),
			Validator: func(data *defn.FwData) (PrefixAnnouncement, bool) {
				return PrefixAnnouncement{}, false
			},
		}, nil
	})
}

// Returns a string identifying this strategy for logging.
func (s *SelfLearning) String() string {
	return "self-learning"
}

// AfterReceiveInterest unicasts along a known route, marking the records
// non-discovery; with no route it broadcasts a discovery copy to every
// non-local face except the ingress.
func (s *SelfLearning) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	if len(nexthops) > 0 {
		for _, nh := range nexthops {
			if !s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
				continue
			}
			if rec := s.Fw.SendInterest(pitEntry, nh.Nexthop, false); rec != nil {
				rec.IsNonDiscovery = true
				if in, ok := pitEntry.InRecords()[inFace]; ok {
					in.IsNonDiscovery = true
				}
				return
			}
		}
	}

	// no route: discovery broadcast
	core.Log.Debug(s, "Broadcasting discovery Interest", "name", interest.NameV)
	sent := false
	for _, fc := range s.Fw.Faces.All() {
		if fc.FaceId() == inFace || fc.Scope() == defn.Local {
			continue
		}
		if s.Fw.SendInterest(pitEntry, fc.FaceId(), false) != nil {
			sent = true
		}
	}
	if !sent {
		s.Fw.SendNack(pitEntry, inFace, defn.NackReasonNoRoute)
		s.Fw.RejectPendingInterest(pitEntry)
	}
}

// AfterReceiveData learns a route from the Data's PrefixAnnouncement when
// the satisfied Interest was a discovery one, so later Interests unicast.
func (s *SelfLearning) AfterReceiveData(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
	if outRecord, ok := pitEntry.OutRecords()[inFace]; ok && outRecord.IsNonDiscovery {
		return
	}
	if len(data.PrefixAnnounce) == 0 {
		return
	}
	pa, ok := s.Validator(data)
	if !ok {
		core.Log.Debug(s, "Dropping invalid prefix announcement", "name", data.NameV)
		return
	}
	if !pa.Prefix.IsPrefix(data.NameV) {
		core.Log.Debug(s, "Announced prefix does not cover Data", "prefix", pa.Prefix, "name", data.NameV)
		return
	}

	core.Log.Info(s, "Learning route", "prefix", pa.Prefix, "faceid", inFace)
	s.Fw.AddRoute(pa.Prefix, inFace, 0)
	if pa.ExpirationTime > 0 {
		prefix := pa.Prefix.Clone()
		s.Fw.Sched.Schedule(pa.ExpirationTime, func() {
			fibEntry, _ := s.Fw.Fib.Insert(prefix)
			s.Fw.Fib.RemoveNextHop(fibEntry, inFace)
		})
	}

	for _, rec := range pitEntry.InRecords() {
		rec.IsNonDiscovery = true
	}
}
