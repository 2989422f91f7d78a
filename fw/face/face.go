/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package face defines the Face contract the forwarding core consumes
// and the FaceTable that owns Face instances. It deliberately
// stops short of any transport: encoding, sockets, and channel bookkeeping
// are a different subsystem.
package face

import (
	"fmt"

	"github.com/named-data/yanfd/fw/defn"
)

// Face is the opaque, bidirectional endpoint the forwarding core sends and
// receives packets through. Concrete transports (TCP/UDP/Unix/websocket/...)
// implement this in a layer above the core; the core only ever holds a
// reference by FaceId.
type Face interface {
	fmt.Stringer

	FaceId() defn.FaceId
	LocalURI() string
	RemoteURI() string
	Scope() defn.Scope
	LinkType() defn.LinkType
	Persistency() defn.Persistency
	SetPersistency(defn.Persistency) bool
	State() defn.State

	// SendInterest queues an Interest for transmission. Returns ErrFaceDown
	// if the face is not up.
	SendInterest(interest *defn.FwInterest, pitToken []byte) error
	// SendData queues a Data packet for transmission.
	SendData(data *defn.FwData, pitToken []byte) error
	// SendNack queues a Nack for transmission.
	SendNack(nack *defn.FwNack, pitToken []byte) error

	// Close transitions the face to Closed. FaceTable.Remove fires
	// before_remove before the face is actually torn down.
	Close()

	NInInterests() uint64
	NInData() uint64
	NInNacks() uint64
	NOutInterests() uint64
	NOutData() uint64
	NOutNacks() uint64

	setFaceId(defn.FaceId)
}

// OnReceiveInterest, OnReceiveData, and OnReceiveNack are the signatures the
// Forwarder registers with a Face to be delivered into the pipeline. A real
// transport calls these from its own receive loop, which is expected to be
// non-blocking and to deliver through the shared event loop.
type (
	OnReceiveInterestFunc func(face defn.FaceId, interest *defn.FwInterest, pitToken []byte)
	OnReceiveDataFunc     func(face defn.FaceId, data *defn.FwData, pitToken []byte)
	OnReceiveNackFunc     func(face defn.FaceId, nack *defn.FwNack, pitToken []byte)
	OnStateChangeFunc     func(face defn.FaceId, old, new defn.State)
)
