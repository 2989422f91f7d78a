/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"math/rand"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// Random forwards each Interest to one eligible nexthop picked uniformly
// at random, ignoring route costs.
type Random struct {
	StrategyBase
}

func init() {
	RegisterStrategy("random", 1, func(fw *Forwarder, instanceName enc.Name) (Strategy, error) {
		if _, err := parseStrategyParams(instanceName[5:]); err != nil {
			return nil, err
		}
		return &Random{StrategyBase: NewStrategyBase(fw, instanceName)}, nil
	})
}

// Returns a string identifying this strategy for logging.
func (s *Random) String() string {
	return "random"
}

// AfterReceiveInterest shuffles the eligible nexthops and forwards to the
// first; with none, the downstream gets Nack(NoRoute).
func (s *Random) AfterReceiveInterest(pitEntry table.PitEntry, interest *defn.FwInterest, inFace defn.FaceId, nexthops []*table.FibNextHopEntry) {
	eligible := make([]defn.FaceId, 0, len(nexthops))
	for _, nh := range nexthops {
		if s.Fw.NexthopEligible(pitEntry, inFace, nh.Nexthop, true) {
			eligible = append(eligible, nh.Nexthop)
		}
	}
	if len(eligible) == 0 {
		core.Log.Debug(s, "No eligible nexthop", "name", interest.NameV)
		s.Fw.SendNack(pitEntry, inFace, defn.NackReasonNoRoute)
		s.Fw.RejectPendingInterest(pitEntry)
		return
	}

	rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	core.Log.Trace(s, "Forwarding Interest", "name", interest.NameV, "faceid", eligible[0])
	s.Fw.SendInterest(pitEntry, eligible[0], false)
}
