/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"math/rand"
	"time"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/scheduler"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// Prediction clock bounds and adjustment shifts, inherited from CCNx
// 0.7.2's forwarding experiment.
const (
	nccInitialPrediction = 8192 * time.Microsecond
	nccMinPrediction     = 127 * time.Microsecond
	nccMaxPrediction     = 160 * time.Millisecond

	nccAdjustPredictDownShift = 7
	nccAdjustPredictUpShift   = 3

	nccDeferFirstWithoutBestFace = 4 * time.Millisecond
	nccDeferRangeWithoutBestFace = 75 * time.Millisecond

	nccMeasurementsLifetime = 16 * time.Second
	nccUpdateNLevels        = 2
)

// nccMeasurementsInfo is the per-prefix prediction state: the face that
// answered fastest, its predecessor, and the prediction clock that times
// how long the best face gets before alternates are tried.
type nccMeasurementsInfo struct {
	prediction   time.Duration
	bestFace     defn.FaceId
	previousFace defn.FaceId
}

func newNccMeasurementsInfo() *nccMeasurementsInfo {
	return &nccMeasurementsInfo{prediction: nccInitialPrediction}
}

func (mi *nccMeasurementsInfo) inheritFrom(other *nccMeasurementsInfo) {
	*mi = *other
}

// getBestFace falls back to the previous best when the best is gone.
func (mi *nccMeasurementsInfo) getBestFace() defn.FaceId {
	if mi.bestFace == defn.InvalidFaceId {
		mi.bestFace = mi.previousFace
	}
	return mi.bestFace
}

// updateBestFace promotes face: already-best tightens the prediction; a
// newcomer demotes the incumbent to previous.
func (mi *nccMeasurementsInfo) updateBestFace(face defn.FaceId) {
	if mi.bestFace == defn.InvalidFaceId {
		mi.bestFace = face
		return
	}
	if mi.bestFace == face {
		mi.adjustPredictDown()
	} else {
		mi.previousFace = mi.bestFace
		mi.bestFace = face
	}
}

func (mi *nccMeasurementsInfo) adjustPredictDown() {
	mi.prediction -= mi.prediction >> nccAdjustPredictDownShift
	if mi.prediction < nccMinPrediction {
		mi.prediction = nccMinPrediction
	}
}

func (mi *nccMeasurementsInfo) adjustPredictUp() {
	mi.prediction += mi.prediction >> nccAdjustPredictUpShift
	if mi.prediction > nccMaxPrediction {
		mi.prediction = nccMaxPrediction
	}
}

func (mi *nccMeasurementsInfo) ageBestFace() {
	mi.previousFace = mi.bestFace
	mi.bestFace = defn.InvalidFaceId
}

// nccPitInfo is the per-entry timer state: the best-face timeout and the
// propagate timer that staggers alternates.
type nccPitInfo struct {
	bestFaceTimeout scheduler.EventId
	propagateTimer  scheduler.EventId
	maxInterval     time.Duration
}

// Ncc is the CCNx 0.7.2-style strategy: trust the best face for one
// prediction interval, and stagger the alternates behind it.
type Ncc struct {
	StrategyBase
	pitInfos map[uint32]*nccPitInfo
}

func init() {
	RegisterStrategy("ncc", 1, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		if _, err := parseStrategyParams(instanceName[5:]); err != nil {
			return nil, err
		}
		return &Ncc{
			StrategyBase: NewStrategyBase(fw, instanceName),
			pitInfos:     make(map[uint32]*nccPitInfo),
		}, nil
	})
}

// Returns a string identifying this strategy for logging.
func (s *Ncc) String() string {
	return "ncc"
}

// measurementsInfo returns (creating and parent-inheriting if needed) the
// prediction state on the Measurements entry at name.
func (s *Ncc) measurementsInfo(name enc.Name) (*table.MeasurementsEntry, *nccMeasurementsInfo) {
	me := s.Measurements.Get(name)
	if mi, ok := me.Info.(*nccMeasurementsInfo); ok {
		return me, mi
	}
	mi := newNccMeasurementsInfo()
	if parent, ok := s.Measurements.GetParent(me); ok {
		if parentInfo, ok := parent.Info.(*nccMeasurementsInfo); ok {
			mi.inheritFrom(parentInfo)
		}
	}
	s.Measurements.SetStrategyInfo(me, mi)
	return me, mi
}

func (s *Ncc) pitInfo(pitEntry table.PitEntry) *nccPitInfo {
	pi, ok := s.pitInfos[pitEntry.Token()]
	if !ok {
		pi = &nccPitInfo{}
		s.pitInfos[pitEntry.Token()] = pi
	}
	return pi
}

// AfterReceiveInterest sends along the predicted best face (arming the
// prediction-clock timeout) or the first eligible nexthop, then schedules
// the propagate event that tries the alternates.
func (s *Ncc) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	if len(nexthops) == 0 {
		s.Fw.RejectPendingInterest(pitEntry)
		return
	}
	if HasUnexpiredOutRecords(pitEntry, s.Fw.Sched.Now()) {
		// retransmission; the propagate timer is already working the entry
		return
	}

	pi := s.pitInfo(pitEntry)
	_, mi := s.measurementsInfo(pitEntry.EncName())

	deferFirst := nccDeferFirstWithoutBestFace
	deferRange := nccDeferRangeWithoutBestFace
	nUpstreams := len(nexthops)

	best := mi.getBestFace()
	if best != defn.InvalidFaceId && nexthopInList(nexthops, best) &&
		s.Fw.NexthopEligible(pitEntry, inFace, best, true) {
		deferFirst = mi.prediction
		deferRange = (deferFirst + 1) / 2
		nUpstreams--
		s.Fw.SendInterest(pitEntry, best, false)
		pi.bestFaceTimeout = s.Fw.Sched.Schedule(mi.prediction, func() {
			s.timeoutOnBestFace(pitEntry)
		})
	} else {
		for _, nh := range nexthops {
			if s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
				s.Fw.SendInterest(pitEntry, nh.Nexthop, false)
				break
			}
		}
	}

	if mi.previousFace != defn.InvalidFaceId && nexthopInList(nexthops, mi.previousFace) &&
		s.Fw.NexthopEligible(pitEntry, inFace, mi.previousFace, true) {
		nUpstreams--
	}

	if nUpstreams > 0 {
		pi.maxInterval = max(time.Microsecond, 2*deferRange/time.Duration(nUpstreams))
	} else {
		pi.maxInterval = deferFirst
	}
	pi.propagateTimer = s.Fw.Sched.Schedule(deferFirst, func() {
		s.doPropagate(pitEntry, inFace)
	})
}

func nexthopInList(nexthops []*table.FibNextHopEntry, face defn.FaceId) bool {
	for _, nh := range nexthops {
		if nh.Nexthop == face {
			return true
		}
	}
	return false
}

// doPropagate sends to the previous-best face and then one more untried
// nexthop, rescheduling itself at a random delay while candidates remain.
func (s *Ncc) doPropagate(pitEntry table.PitEntry, inFace defn.FaceId) {
	pi, ok := s.pitInfos[pitEntry.Token()]
	if !ok {
		return
	}
	fibEntry := s.Fw.Fib.FindLongestPrefixMatch(pitEntry.EncName())
	_, mi := s.measurementsInfo(pitEntry.EncName())

	if mi.previousFace != defn.InvalidFaceId && nexthopInList(fibEntry.GetNextHops(), mi.previousFace) &&
		s.Fw.NexthopEligible(pitEntry, inFace, mi.previousFace, true) {
		s.Fw.SendInterest(pitEntry, mi.previousFace, false)
	}

	isForwarded := false
	for _, nh := range fibEntry.GetNextHops() {
		if s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
			isForwarded = true
			s.Fw.SendInterest(pitEntry, nh.Nexthop, false)
			break
		}
	}

	if isForwarded {
		deferNext := time.Duration(rand.Int63n(int64(max(time.Microsecond, pi.maxInterval))))
		pi.propagateTimer = s.Fw.Sched.Schedule(deferNext, func() {
			s.doPropagate(pitEntry, inFace)
		})
	}
}

// timeoutOnBestFace fires when the best face exceeded its prediction:
// loosen the clock on the entry's name and its ancestors and demote the
// face.
func (s *Ncc) timeoutOnBestFace(pitEntry table.PitEntry) {
	name := pitEntry.EncName()
	for i := 0; i < nccUpdateNLevels; i++ {
		me, mi := s.measurementsInfo(name)
		s.Measurements.ExtendLifetime(me, nccMeasurementsLifetime)
		mi.adjustPredictUp()
		mi.ageBestFace()
		if len(name) == 0 {
			break
		}
		name = name.Prefix(len(name) - 1)
	}
}

// BeforeSatisfyInterest promotes the returning face to best on the entry's
// ancestors, tightening the prediction when it was already best. A
// competing path's improved RTT deliberately does not trigger re-selection
// until that path is itself tried.
func (s *Ncc) BeforeSatisfyInterest(pitEntry table.PitEntry, data *defn.FwData, inFace defn.FaceId) {
	if pi, ok := s.pitInfos[pitEntry.Token()]; ok {
		s.Fw.Sched.Cancel(pi.bestFaceTimeout)
		s.Fw.Sched.Cancel(pi.propagateTimer)
	}

	if len(pitEntry.InRecords()) == 0 {
		// already satisfied and waiting out the straggler timer; NCC does
		// not collect measurements for a non-fastest face
		return
	}

	name := pitEntry.EncName()
	for i := 0; i < nccUpdateNLevels; i++ {
		me, mi := s.measurementsInfo(name)
		s.Measurements.ExtendLifetime(me, nccMeasurementsLifetime)
		mi.updateBestFace(inFace)
		if len(name) == 0 {
			break
		}
		name = name.Prefix(len(name) - 1)
	}
	core.Log.Trace(s, "Data received", "name", data.NameV, "faceid", inFace)
}

// BeforeRemoveFace demotes the departing face wherever it was best.
func (s *Ncc) BeforeRemoveFace(face defn.FaceId) {
	for _, me := range s.Measurements.GetAll() {
		if mi, ok := me.Info.(*nccMeasurementsInfo); ok {
			if mi.bestFace == face {
				mi.bestFace = defn.InvalidFaceId
			}
			if mi.previousFace == face {
				mi.previousFace = defn.InvalidFaceId
			}
		}
	}
}

// BeforeErasePitEntry cancels the entry's timers and drops its state.
func (s *Ncc) BeforeErasePitEntry(pitEntry table.PitEntry) {
	if pi, ok := s.pitInfos[pitEntry.Token()]; ok {
		s.Fw.Sched.Cancel(pi.bestFaceTimeout)
		s.Fw.Sched.Cancel(pi.propagateTimer)
		delete(s.pitInfos, pitEntry.Token())
	}
}
