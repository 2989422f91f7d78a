/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"math/rand"
	"sort"
	"time"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
)

// defaultProbingInterval is how often ASF refreshes an alternate path's
// measurements with a probe.
const defaultProbingInterval = 60 * time.Second

// asfProbingModule decides when and where ASF sends the extra fresh-Nonce
// copy of an Interest that keeps non-best paths measured.
type asfProbingModule struct {
	s        *Asf
	interval time.Duration
}

func newAsfProbingModule(s *Asf, interval time.Duration) *asfProbingModule {
	return &asfProbingModule{s: s, interval: interval}
}

// afterForward runs after the primary copy went out: it keeps the
// per-namespace probing clock armed and, when a probe is due and a
// candidate exists, sends the probe and clears the flag.
func (p *asfProbingModule) afterForward(pitEntry table.PitEntry, inFace defn.FaceId, ranked []*table.FibNextHopEntry, ni *asfNamespaceInfo, usedFace defn.FaceId) {
	if !ni.probingScheduled {
		ni.probingScheduled = true
		p.s.Fw.Sched.Schedule(p.interval, func() {
			ni.isProbingDue = true
			ni.probingScheduled = false
		})
	}

	if !ni.isProbingDue {
		return
	}
	probe := p.faceToProbe(ranked, ni, usedFace)
	if probe == defn.InvalidFaceId {
		return
	}
	ni.isProbingDue = false
	core.Log.Debug(p.s, "Probing", "name", pitEntry.EncName(), "faceid", probe)
	p.s.forwardInterest(pitEntry, probe, ni, true)
}

// asfProbingGroup orders candidates for probing: never-measured faces are
// the most interesting, then working ones, then timed-out ones.
func asfProbingGroup(fi *asfFaceInfo) int {
	switch fi.lastRtt {
	case RttNoMeasurement:
		return 1
	case RttTimeout:
		return 3
	default:
		return 2
	}
}

// faceToProbe picks the probe target stochastically: candidates are
// ordered by probing group, and the face at 1-based rank r is chosen with
// probability (n + 1 - r) / sum(1..n), favoring the front of the order.
func (p *asfProbingModule) faceToProbe(ranked []*table.FibNextHopEntry, ni *asfNamespaceInfo, usedFace defn.FaceId) defn.FaceId {
	candidates := make([]defn.FaceId, 0, len(ranked))
	for _, nh := range ranked {
		if nh.Nexthop != usedFace {
			candidates = append(candidates, nh.Nexthop)
		}
	}
	if len(candidates) == 0 {
		return defn.InvalidFaceId
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return asfProbingGroup(ni.faceInfo(candidates[i])) < asfProbingGroup(ni.faceInfo(candidates[j]))
	})

	n := len(candidates)
	rankSum := n * (n + 1) / 2
	random := rand.Float64()
	offset := 0.0
	for i, face := range candidates {
		probability := float64(n-i) / float64(rankSum)
		if random < offset+probability {
			return face
		}
		offset += probability
	}
	return candidates[n-1]
}
