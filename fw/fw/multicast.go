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

// MulticastSuppressionTime is the window within which a retransmission of
// the same Interest is not re-fanned-out.
const MulticastSuppressionTime = 500 * time.Millisecond

// Multicast forwards every Interest to all eligible nexthop faces.
type Multicast struct {
	StrategyBase
	retx *RetxSuppressionFixed
}

func init() {
	RegisterStrategy("multicast", 1, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		if _, err := parseStrategyParams(instanceName[5:]); err != nil {
			return nil, err
		}
		return &Multicast{
			StrategyBase: NewStrategyBase(fw, instanceName),
			retx:         NewRetxSuppressionFixed(MulticastSuppressionTime),
		}, nil
	})
}

// Returns a string identifying this strategy for logging.
func (s *Multicast) String() string {
	return "multicast"
}

// AfterReceiveInterest fans a new Interest out to every eligible nexthop;
// a retransmission inside the suppression window is dropped, outside it
// the fan-out is repeated toward upstreams not already carrying an
// unexpired out-record.
func (s *Multicast) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop for Interest", "name", interest.NameV)
		return
	}

	now := s.Fw.Sched.Now()
	switch s.retx.SuppressResult(pitEntry, now) {
	case RetxSuppressionSuppress:
		core.Log.Debug(s, "Suppressed Interest", "name", interest.NameV)
	case RetxSuppressionNew, RetxSuppressionForward:
		for _, nexthop := range nexthops {
			if !s.Fw.NexthopEligible(pitEntry, inFace, nexthop.Nexthop, true) {
				continue
			}
			core.Log.Trace(s, "Forwarding Interest", "name", interest.NameV, "faceid", nexthop.Nexthop)
			s.Fw.SendInterest(pitEntry, nexthop.Nexthop, false)
		}
	}
}
