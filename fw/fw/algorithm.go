/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"time"

	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/table"
	enc "github.com/named-data/yanfd/std/encoding"
)

// IsLocalhost reports whether name falls under /localhost.
func IsLocalhost(name enc.Name) bool {
	return defn.LOCALHOST_PREFIX.IsPrefix(name)
}

// IsLocalhop reports whether name falls under /localhop.
func IsLocalhop(name enc.Name) bool {
	return defn.LOCALHOP_PREFIX.IsPrefix(name)
}

// WouldViolateScope reports whether forwarding an Interest/Data named name,
// received on a face of scope inFaceScope, out a face of scope
// outFaceScope would break NDN's localhost/localhop scoping rule: a /localhost packet may never cross a non-local face, and a
// /localhop packet may not be forwarded unless either the face it arrived
// on or the face it is going out is local.
func WouldViolateScope(name enc.Name, inFaceScope defn.Scope, outFaceScope defn.Scope) bool {
	if outFaceScope == defn.Local {
		return false
	}
	if IsLocalhost(name) {
		return true
	}
	if IsLocalhop(name) {
		return inFaceScope != defn.Local
	}
	return false
}

// DuplicateNonceWhere is a bitmask locating where a Nonce was already seen
// on a PIT entry, relative to an arrival face.
type DuplicateNonceWhere int

const (
	DuplicateNonceNone     DuplicateNonceWhere = 0
	DuplicateNonceInSame   DuplicateNonceWhere = 1 << 0 // in-record of the same face
	DuplicateNonceInOther  DuplicateNonceWhere = 1 << 1 // in-record of a different face
	DuplicateNonceOutSame  DuplicateNonceWhere = 1 << 2 // out-record of the same face
	DuplicateNonceOutOther DuplicateNonceWhere = 1 << 3 // out-record of a different face
)

// FindDuplicateNonce scans pitEntry's records for nonce and reports where
// it appears relative to face.
func FindDuplicateNonce(pitEntry table.PitEntry, nonce uint32, face defn.FaceId) DuplicateNonceWhere {
	where := DuplicateNonceNone
	for _, rec := range pitEntry.InRecords() {
		if rec.LatestNonce != nonce {
			continue
		}
		if rec.Face == face {
			where |= DuplicateNonceInSame
		} else {
			where |= DuplicateNonceInOther
		}
	}
	for _, rec := range pitEntry.OutRecords() {
		if rec.LatestNonce != nonce {
			continue
		}
		if rec.Face == face {
			where |= DuplicateNonceOutSame
		} else {
			where |= DuplicateNonceOutOther
		}
	}
	return where
}

// HasUnexpiredOutRecord reports whether pitEntry holds an unexpired
// out-record for face.
func HasUnexpiredOutRecord(pitEntry table.PitEntry, face defn.FaceId, now time.Time) bool {
	rec, ok := pitEntry.OutRecords()[face]
	return ok && rec.ExpirationTime.After(now)
}

// HasUnexpiredOutRecords reports whether pitEntry holds any unexpired
// out-record; an entry without one is treated as new by strategies.
func HasUnexpiredOutRecords(pitEntry table.PitEntry, now time.Time) bool {
	for _, rec := range pitEntry.OutRecords() {
		if rec.ExpirationTime.After(now) {
			return true
		}
	}
	return false
}

// CanForwardToLegacy reports whether pitEntry may be forwarded to face
// under the legacy rule: no unexpired out-record for face, and some
// unexpired in-record on a different face.
func CanForwardToLegacy(pitEntry table.PitEntry, face defn.FaceId, now time.Time) bool {
	if HasUnexpiredOutRecord(pitEntry, face, now) {
		return false
	}
	for _, rec := range pitEntry.InRecords() {
		if rec.Face != face && rec.ExpirationTime.After(now) {
			return true
		}
	}
	return false
}
