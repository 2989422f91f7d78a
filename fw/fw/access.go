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
	"github.com/named-data/yanfd/fw/scheduler"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// accessMeasurementsLifetime is how long a learned last-nexthop survives
// after its most recent confirmation.
const accessMeasurementsLifetime = 8 * time.Second

// accessMtInfo is the per-prefix state the access strategy stores at the
// Measurements entry for a producer group: the upstream that answered
// last, and the RTT it has been answering in. Siblings under the same
// parent inherit it because it is stored at the Data name's parent.
type accessMtInfo struct {
	LastNexthop defn.FaceId
	Rtt         *RttEstimator
}

// accessFaceInfo tracks RTT per upstream face, shared across prefixes.
type accessFaceInfo struct {
	rtt *RttEstimator
}

// Access serves the last-hop router toward roaming consumers under a
// shared prefix: unicast to the last working nexthop with an RTO fallback
// to multicast.
type Access struct {
	StrategyBase
	fit       map[defn.FaceId]*accessFaceInfo
	rtoTimers map[uint32]scheduler.EventId
}

func init() {
	RegisterStrategy("access", 1, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		if _, err := parseStrategyParams(instanceName[5:]); err != nil {
			return nil, err
		}
		return &Access{
			StrategyBase: NewStrategyBase(fw, instanceName),
			fit:          make(map[defn.FaceId]*accessFaceInfo),
			rtoTimers:    make(map[uint32]scheduler.EventId),
		}, nil
	})
}

func accessRttOptions() RttEstimatorOptions {
	opts := DefaultRttEstimatorOptions()
	opts.Alpha = 0.1
	opts.MinRto = 1 * time.Millisecond
	opts.InitialRto = 100 * time.Millisecond
	return opts
}

// Returns a string identifying this strategy for logging.
func (s *Access) String() string {
	return "access"
}

// AfterReceiveInterest unicasts a new Interest to the remembered
// last-nexthop when one is usable, falling back to multicast; a
// retransmission always multicasts, excluding the downstream.
func (s *Access) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	if HasUnexpiredOutRecords(pitEntry, s.Fw.Sched.Now()) {
		// retransmission
		core.Log.Debug(s, "Multicasting retransmission", "name", interest.NameV)
		s.multicast(pitEntry, nexthops, inFace)
		return
	}

	if me, ok := s.Measurements.FindLongestPrefixMatchForPitEntry(pitEntry); ok {
		if mi, ok := me.Info.(*accessMtInfo); ok && s.sendToLastNexthop(pitEntry, mi, nexthops, inFace) {
			return
		}
	}

	// no measurements, or last working nexthop unusable
	s.multicast(pitEntry, nexthops, inFace)
}

// sendToLastNexthop tries the remembered upstream, arming an RTO timer
// that multicasts to the remaining nexthops if no Data comes back in time.
func (s *Access) sendToLastNexthop(pitEntry table.PitEntry, mi *accessMtInfo, nexthops []*table.FibNextHopEntry, inFace defn.FaceId) bool {
	last := mi.LastNexthop
	if last == defn.InvalidFaceId || last == inFace {
		return false
	}
	inFib := false
	for _, nh := range nexthops {
		if nh.Nexthop == last {
			inFib = true
			break
		}
	}
	if !inFib || !s.Fw.NexthopEligible(pitEntry, inFace, last, true) {
		return false
	}

	rto := mi.Rtt.Rto()
	core.Log.Trace(s, "Forwarding to last nexthop", "name", pitEntry.EncName(), "faceid", last, "rto", rto)
	s.Fw.SendInterest(pitEntry, last, false)

	tok := pitEntry.Token()
	if ev, ok := s.rtoTimers[tok]; ok {
		s.Fw.Sched.Cancel(ev)
	}
	s.rtoTimers[tok] = s.Fw.Sched.Schedule(rto, func() {
		delete(s.rtoTimers, tok)
		if pitEntry.Satisfied() {
			return
		}
		core.Log.Debug(s, "RTO timeout, multicasting", "name", pitEntry.EncName(), "except", last)
		fibEntry := s.Fw.Fib.FindLongestPrefixMatch(pitEntry.EncName())
		for _, nh := range fibEntry.GetNextHops() {
			if nh.Nexthop == last {
				continue
			}
			if !s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
				continue
			}
			s.Fw.SendInterest(pitEntry, nh.Nexthop, false)
		}
	})
	return true
}

func (s *Access) multicast(pitEntry table.PitEntry, nexthops []*table.FibNextHopEntry, inFace defn.FaceId) {
	for _, nh := range nexthops {
		if !s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
			continue
		}
		s.Fw.SendInterest(pitEntry, nh.Nexthop, false)
	}
}

// BeforeSatisfyInterest cancels the RTO timer and folds the returning
// face's RTT into the last-nexthop record at the Data name's parent, so
// siblings produced by the same host inherit the learned path.
func (s *Access) BeforeSatisfyInterest(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
	if ev, ok := s.rtoTimers[pitEntry.Token()]; ok {
		s.Fw.Sched.Cancel(ev)
		delete(s.rtoTimers, pitEntry.Token())
	}

	if len(pitEntry.InRecords()) == 0 {
		// already satisfied by a faster upstream
		return
	}
	outRecord, ok := pitEntry.OutRecords()[inFace]
	if !ok {
		return
	}
	rtt := s.Fw.Sched.Now().Sub(outRecord.LatestTimestamp)
	core.Log.Trace(s, "Data received", "name", data.NameV, "faceid", inFace, "rtt", rtt)

	fi, ok := s.fit[inFace]
	if !ok {
		fi = &accessFaceInfo{rtt: NewRttEstimator(accessRttOptions())}
		s.fit[inFace] = fi
	}
	fi.rtt.AddMeasurement(rtt)

	me := s.prefixMeasurements(data)
	s.Measurements.ExtendLifetime(me, accessMeasurementsLifetime)
	mi, ok := me.Info.(*accessMtInfo)
	if !ok {
		mi = &accessMtInfo{LastNexthop: defn.InvalidFaceId, Rtt: NewRttEstimator(accessRttOptions())}
		s.Measurements.SetStrategyInfo(me, mi)
	}
	if mi.LastNexthop != inFace {
		mi.LastNexthop = inFace
		shared := *fi.rtt
		mi.Rtt = &shared
	} else {
		mi.Rtt.AddMeasurement(rtt)
	}
}

// prefixMeasurements finds the Measurements entry at the Data name's
// parent, or the Data name itself when there is no parent to use.
func (s *Access) prefixMeasurements(data *defn.FwData) *table.MeasurementsEntry {
	if len(data.NameV) >= 1 {
		return s.Measurements.Get(data.NameV.Prefix(len(data.NameV) - 1))
	}
	return s.Measurements.Get(data.NameV)
}

// BeforeRemoveFace forgets the per-face RTT state of a departing face.
func (s *Access) BeforeRemoveFace(face defn.FaceId) {
	delete(s.fit, face)
}

// BeforeErasePitEntry cancels the entry's RTO timer, if armed.
func (s *Access) BeforeErasePitEntry(pitEntry table.PitEntry) {
	if ev, ok := s.rtoTimers[pitEntry.Token()]; ok {
		s.Fw.Sched.Cancel(ev)
		delete(s.rtoTimers, pitEntry.Token())
	}
}
