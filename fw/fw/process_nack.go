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
)

// ProcessNackTraits is the shared Nack-handling mixin the reference
// strategies use. Once every upstream of a PIT entry has
// Nacked, the combined reason is reflected to every matching downstream;
// if exactly one upstream has not Nacked and that same face is also a
// downstream, the wait would deadlock, so it is Nacked immediately.
type ProcessNackTraits struct {
	fw *Forwarder
}

// NewProcessNackTraits builds a mixin bound to fw, whose outgoing-Nack
// pipeline this type reflects through.
func NewProcessNackTraits(fw *Forwarder) ProcessNackTraits {
	return ProcessNackTraits{fw: fw}
}

// ProcessNack runs the combine-or-wait algorithm for a Nack that the
// incoming pipeline already attached to inFace's out-record.
func (p ProcessNackTraits) ProcessNack(pitEntry table.PitEntry, inFace defn.FaceId, nack *defn.FwNack) {
	outRecords := pitEntry.OutRecords()
	rec, ok := outRecords[inFace]
	if !ok {
		return
	}
	rec.HasNack = true
	rec.NackReason = defn.CombineNackReason(rec.NackReason, nack.Reason)

	nUnNacked := 0
	var lastUnNacked defn.FaceId
	combined := defn.NackReasonNone
	for _, r := range outRecords {
		if !r.HasNack {
			nUnNacked++
			lastUnNacked = r.Face
			continue
		}
		combined = defn.CombineNackReason(combined, r.NackReason)
	}

	if nUnNacked == 0 {
		core.Log.Debug(p.fw, "All upstreams Nacked", "name", pitEntry.EncName(), "reason", combined)
		p.fw.SendNacks(pitEntry, combined)
		return
	}

	if nUnNacked == 1 {
		if _, isDownstream := pitEntry.InRecords()[lastUnNacked]; isDownstream {
			// the one upstream still owing a response is waiting on us:
			// break the live deadlock by Nacking it now
			core.Log.Debug(p.fw, "Breaking live deadlock", "name", pitEntry.EncName(), "faceid", lastUnNacked)
			p.fw.SendNack(pitEntry, lastUnNacked, nack.Reason)
		}
	}
}
