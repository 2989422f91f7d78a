/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"fmt"
	"sync/atomic"

	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/std/ndn"
)

// TestFace is a Face that records every packet sent through it instead of
// transmitting it anywhere. It is the test double used throughout fw/fw's
// pipeline and strategy tests in place of a real transport.
type TestFace struct {
	id          defn.FaceId
	scope       defn.Scope
	linkType    defn.LinkType
	persistency defn.Persistency
	state       atomic.Int32

	OutInterests []*defn.FwInterest
	OutData      []*defn.FwData
	OutNacks     []*defn.FwNack

	// tokens paired index-for-index with the slices above
	OutInterestTokens [][]byte
	OutDataTokens     [][]byte
	OutNackTokens     [][]byte

	nInI, nInD, nInN, nOutI, nOutD, nOutN atomic.Uint64
}

// NewTestFace constructs a TestFace with the given scope and link type.
func NewTestFace(scope defn.Scope, linkType defn.LinkType) *TestFace {
	f := &TestFace{scope: scope, linkType: linkType, persistency: defn.PersistencyPersistent}
	f.state.Store(int32(defn.Up))
	return f
}

// Returns a string representation of the test face, identifying it by FaceId and scope.
func (f *TestFace) String() string {
	return fmt.Sprintf("test-face (faceid=%d scope=%s)", f.id, f.scope)
}

func (f *TestFace) FaceId() defn.FaceId           { return f.id }
func (f *TestFace) LocalURI() string              { return "test://local" }
func (f *TestFace) RemoteURI() string             { return "test://remote" }
func (f *TestFace) Scope() defn.Scope             { return f.scope }
func (f *TestFace) LinkType() defn.LinkType       { return f.linkType }
func (f *TestFace) Persistency() defn.Persistency { return f.persistency }
func (f *TestFace) State() defn.State             { return defn.State(f.state.Load()) }

func (f *TestFace) setFaceId(id defn.FaceId) { f.id = id }

// SetPersistency changes the persistency of the face, always succeeding for a test face.
func (f *TestFace) SetPersistency(p defn.Persistency) bool {
	f.persistency = p
	return true
}

// SendInterest records the Interest as sent, failing if the face is down.
func (f *TestFace) SendInterest(interest *defn.FwInterest, pitToken []byte) error {
	if f.State() != defn.Up {
		return ndn.ErrFaceDown
	}
	f.nOutI.Add(1)
	f.OutInterests = append(f.OutInterests, interest)
	f.OutInterestTokens = append(f.OutInterestTokens, pitToken)
	return nil
}

// SendData records the Data as sent, failing if the face is down.
func (f *TestFace) SendData(data *defn.FwData, pitToken []byte) error {
	if f.State() != defn.Up {
		return ndn.ErrFaceDown
	}
	f.nOutD.Add(1)
	f.OutData = append(f.OutData, data)
	f.OutDataTokens = append(f.OutDataTokens, pitToken)
	return nil
}

// SendNack records the Nack as sent, failing if the face is down.
func (f *TestFace) SendNack(nack *defn.FwNack, pitToken []byte) error {
	if f.State() != defn.Up {
		return ndn.ErrFaceDown
	}
	f.nOutN.Add(1)
	f.OutNacks = append(f.OutNacks, nack)
	f.OutNackTokens = append(f.OutNackTokens, pitToken)
	return nil
}

// Close transitions the test face to Closed.
func (f *TestFace) Close() {
	f.state.Store(int32(defn.Closed))
}

func (f *TestFace) NInInterests() uint64  { return f.nInI.Load() }
func (f *TestFace) NInData() uint64       { return f.nInD.Load() }
func (f *TestFace) NInNacks() uint64      { return f.nInN.Load() }
func (f *TestFace) NOutInterests() uint64 { return f.nOutI.Load() }
func (f *TestFace) NOutData() uint64      { return f.nOutD.Load() }
func (f *TestFace) NOutNacks() uint64     { return f.nOutN.Load() }
