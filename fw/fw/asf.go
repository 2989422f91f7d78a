/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"sort"
	"time"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/scheduler"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// Sentinel last-RTT values for faces that were never measured or whose
// last Interest timed out. srtt < RttNoMeasurement < RttTimeout for
// ranking purposes.
const (
	RttNoMeasurement time.Duration = -1
	RttTimeout       time.Duration = -2
)

const asfMeasurementsLifetime = 5 * time.Minute

// asfFaceInfo is per-(namespace, face) measurement state.
type asfFaceInfo struct {
	rtt             *RttEstimator
	lastRtt         time.Duration
	timeoutEvent    scheduler.EventId
	hasTimeoutEvent bool
	nSilentTimeouts int
}

// asfNamespaceInfo aggregates the per-face state of one namespace plus the
// probing flags the probing module toggles.
type asfNamespaceInfo struct {
	faces            map[defn.FaceId]*asfFaceInfo
	isProbingDue     bool
	probingScheduled bool
}

// Asf is adaptive smoothed-RTT forwarding: Interests follow the face with
// the best measured SRTT, with periodic probes keeping the alternatives'
// measurements fresh.
type Asf struct {
	StrategyBase
	probing *asfProbingModule
	retx    *RetxSuppressionExponentialPerFace
}

func init() {
	RegisterStrategy("asf", 1, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		params, err := parseStrategyParams(instanceName[5:],
			"probing-interval",
			"retx-suppression-initial", "retx-suppression-max", "retx-suppression-multiplier")
		if err != nil {
			return nil, err
		}
		probingInterval, err := params.duration("probing-interval", defaultProbingInterval)
		if err != nil {
			return nil, err
		}
		retxOpts := DefaultRetxSuppressionExponentialOptions()
		retxOpts.InitialInterval = 10 * time.Millisecond
		if retxOpts.InitialInterval, err = params.duration("retx-suppression-initial", retxOpts.InitialInterval); err != nil {
			return nil, err
		}
		if retxOpts.MaxInterval, err = params.duration("retx-suppression-max", retxOpts.MaxInterval); err != nil {
			return nil, err
		}
		if retxOpts.Multiplier, err = params.float("retx-suppression-multiplier", retxOpts.Multiplier); err != nil {
			return nil, err
		}
		s := &Asf{
			StrategyBase: NewStrategyBase(fw, instanceName),
			retx:         NewRetxSuppressionExponentialPerFace(retxOpts),
		}
		s.probing = newAsfProbingModule(s, probingInterval)
		return s, nil
	})
}

// Returns a string identifying this strategy for logging.
func (s *Asf) String() string {
	return "asf"
}

// namespaceInfo returns (creating if needed) the measurement state for the
// FIB prefix governing pitEntry.
func (s *Asf) namespaceInfo(pitEntry table.PitEntry) *asfNamespaceInfo {
	fibEntry := s.Fw.Fib.FindLongestPrefixMatch(pitEntry.EncName())
	me := s.Measurements.Get(fibEntry.Name())
	s.Measurements.ExtendLifetime(me, asfMeasurementsLifetime)
	ni, ok := me.Info.(*asfNamespaceInfo)
	if !ok {
		ni = &asfNamespaceInfo{faces: make(map[defn.FaceId]*asfFaceInfo)}
		s.Measurements.SetStrategyInfo(me, ni)
	}
	return ni
}

func (ni *asfNamespaceInfo) faceInfo(face defn.FaceId) *asfFaceInfo {
	fi, ok := ni.faces[face]
	if !ok {
		fi = &asfFaceInfo{
			rtt:     NewRttEstimator(DefaultRttEstimatorOptions()),
			lastRtt: RttNoMeasurement,
		}
		ni.faces[face] = fi
	}
	return fi
}

// asfPriorityGroup ranks a face's measurement state: 1 = measured and
// working, 2 = never measured, 3 = timed out.
func asfPriorityGroup(fi *asfFaceInfo) int {
	switch fi.lastRtt {
	case RttTimeout:
		return 3
	case RttNoMeasurement:
		return 2
	default:
		return 1
	}
}

// rankedNexthops orders the eligible nexthops by (priority group, srtt,
// cost, FaceId).
func (s *Asf) rankedNexthops(pitEntry table.PitEntry, inFace defn.FaceId, nexthops []*table.FibNextHopEntry, ni *asfNamespaceInfo) []*table.FibNextHopEntry {
	eligible := make([]*table.FibNextHopEntry, 0, len(nexthops))
	for _, nh := range nexthops {
		if s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, false) {
			eligible = append(eligible, nh)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := ni.faceInfo(eligible[i].Nexthop), ni.faceInfo(eligible[j].Nexthop)
		ga, gb := asfPriorityGroup(a), asfPriorityGroup(b)
		if ga != gb {
			return ga < gb
		}
		if ga == 1 && a.rtt.SRtt() != b.rtt.SRtt() {
			return a.rtt.SRtt() < b.rtt.SRtt()
		}
		if eligible[i].Cost != eligible[j].Cost {
			return eligible[i].Cost < eligible[j].Cost
		}
		return eligible[i].Nexthop < eligible[j].Nexthop
	})
	return eligible
}

// AfterReceiveInterest forwards along the best-ranked face, arms an RTO
// timeout for the attempt, and piggybacks a probe when one is due.
func (s *Asf) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	ni := s.namespaceInfo(pitEntry)
	ranked := s.rankedNexthops(pitEntry, inFace, nexthops, ni)
	if len(ranked) == 0 {
		core.Log.Debug(s, "No eligible nexthop", "name", interest.NameV)
		s.Fw.SendNack(pitEntry, inFace, defn.NackReasonNoRoute)
		s.Fw.RejectPendingInterest(pitEntry)
		return
	}

	best := ranked[0].Nexthop
	now := s.Fw.Sched.Now()
	if HasUnexpiredOutRecord(pitEntry, best, now) {
		switch s.retx.SuppressResult(pitEntry, best, now) {
		case RetxSuppressionSuppress:
			core.Log.Debug(s, "Suppressed retransmission", "name", interest.NameV, "faceid", best)
			return
		default:
		}
		s.forwardInterest(pitEntry, best, ni, true)
	} else {
		s.forwardInterest(pitEntry, best, ni, false)
	}

	s.probing.afterForward(pitEntry, inFace, ranked, ni, best)
}

// forwardInterest sends toward face and arms the in-flight RTO timeout
// that marks the face timed-out if no Data beats it back.
func (s *Asf) forwardInterest(pitEntry table.PitEntry, face defn.FaceId, ni *asfNamespaceInfo, wantNewNonce bool) {
	if s.Fw.SendInterest(pitEntry, face, wantNewNonce) == nil {
		return
	}
	fi := ni.faceInfo(face)
	if fi.hasTimeoutEvent {
		s.Fw.Sched.Cancel(fi.timeoutEvent)
	}
	fi.hasTimeoutEvent = true
	fi.timeoutEvent = s.Fw.Sched.Schedule(fi.rtt.Rto(), func() {
		fi.hasTimeoutEvent = false
		fi.nSilentTimeouts++
		fi.lastRtt = RttTimeout
		fi.rtt.BackoffRto()
		core.Log.Debug(s, "Interest timeout", "name", pitEntry.EncName(), "faceid", face)
	})
}

// BeforeSatisfyInterest records the RTT sample for the returning face and
// clears its timeout state.
func (s *Asf) BeforeSatisfyInterest(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
	ni := s.namespaceInfo(pitEntry)
	fi, ok := ni.faces[inFace]
	if !ok {
		return
	}
	if fi.hasTimeoutEvent {
		s.Fw.Sched.Cancel(fi.timeoutEvent)
		fi.hasTimeoutEvent = false
	}
	outRecord, ok := pitEntry.OutRecords()[inFace]
	if !ok {
		return
	}
	rtt := s.Fw.Sched.Now().Sub(outRecord.LatestTimestamp)
	fi.rtt.AddMeasurement(rtt)
	fi.lastRtt = rtt
	fi.nSilentTimeouts = 0
	core.Log.Trace(s, "Data received", "name", data.NameV, "faceid", inFace, "rtt", rtt)
}

// AfterReceiveNack treats the Nacked face as timed out for ranking, then
// runs the shared combine-or-wait handling.
func (s *Asf) AfterReceiveNack(pitEntry table.PitEntry, nack *defn.FwNack, inFace defn.FaceId) {
	ni := s.namespaceInfo(pitEntry)
	fi := ni.faceInfo(inFace)
	fi.lastRtt = RttTimeout
	if fi.hasTimeoutEvent {
		s.Fw.Sched.Cancel(fi.timeoutEvent)
		fi.hasTimeoutEvent = false
	}
	NewProcessNackTraits(s.Fw).ProcessNack(pitEntry, inFace, nack)
}

// BeforeRemoveFace purges the departing face from every namespace.
func (s *Asf) BeforeRemoveFace(face defn.FaceId) {
	for _, me := range s.Measurements.GetAll() {
		if ni, ok := me.Info.(*asfNamespaceInfo); ok {
			if fi, ok := ni.faces[face]; ok {
				if fi.hasTimeoutEvent {
					s.Fw.Sched.Cancel(fi.timeoutEvent)
				}
				delete(ni.faces, face)
			}
		}
	}
}

// BeforeErasePitEntry drops the suppression windows accumulated for the
// entry.
func (s *Asf) BeforeErasePitEntry(pitEntry table.PitEntry) {
	s.retx.Erase(pitEntry)
}
