/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package defn holds the small, dependency-free types shared across the
// forwarding core: face identifiers and properties, and the special Names
// that carry scope and strategy semantics.
package defn

import enc "github.com/named-data/yanfd/std/encoding"

// FaceId uniquely identifies a Face for the lifetime of the process.
type FaceId = uint64

// InvalidFaceId is never assigned to a real face.
const InvalidFaceId FaceId = 0

// ContentStoreFaceId is used in SendData calls to indicate the Content
// Store, rather than a real face, produced the Data.
const ContentStoreFaceId FaceId = 0

// Scope indicates whether a face is reachable only from this host.
type Scope int

const (
	NonLocal Scope = iota
	Local
)

// Returns the human-readable name of the scope.
func (s Scope) String() string {
	if s == Local {
		return "local"
	}
	return "non-local"
}

// LinkType describes the fan-out behavior of a face's underlying link.
type LinkType int

const (
	PointToPoint LinkType = iota
	MultiAccess
	AdHoc
)

// Returns the human-readable name of the link type.
func (t LinkType) String() string {
	switch t {
	case PointToPoint:
		return "point-to-point"
	case MultiAccess:
		return "multi-access"
	case AdHoc:
		return "ad-hoc"
	default:
		return "unknown"
	}
}

// Persistency governs whether a face is removed when its underlying
// transport goes down.
type Persistency int

const (
	PersistencyOnDemand Persistency = iota
	PersistencyPersistent
	PersistencyPermanent
)

// Returns the human-readable name of the persistency setting.
func (p Persistency) String() string {
	switch p {
	case PersistencyOnDemand:
		return "on-demand"
	case PersistencyPersistent:
		return "persistent"
	case PersistencyPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// State describes a face's lifecycle state.
type State int

const (
	Up State = iota
	Down
	Closed
)

// Returns the human-readable name of the face state.
func (s State) String() string {
	switch s {
	case Up:
		return "up"
	case Down:
		return "down"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MaxNDNPacketSize is the largest Interest/Data/Nack this core expects a
// face to hand it.
const MaxNDNPacketSize = 8800

// LOCALHOST_PREFIX and LOCALHOP_PREFIX are the Names that carry NDN's
// host-only and single-hop propagation restrictions.
var LOCALHOST_PREFIX = enc.Name{enc.LOCALHOST}
var LOCALHOP_PREFIX = enc.Name{enc.LOCALHOP}

// STRATEGY_PREFIX is the canonical namespace strategy Names are registered
// under: /localhost/nfd/strategy/<strategyId>.
var STRATEGY_PREFIX = enc.Name{
	enc.LOCALHOST,
	enc.NewGenericComponent("nfd"),
	enc.NewGenericComponent("strategy"),
}
