/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"sort"

	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/std/ndn"
)

// FirstFreeId is the first FaceId handed out by Add; low ids are reserved
// for internal/special faces.
const FirstFreeId defn.FaceId = 256

// Table is the exclusive owner of Face instances. FIB
// next-hops, PIT records, and strategy state must hold only the FaceId and
// look the Face back up here; they never keep a raw reference across a
// handler return. Table is touched only from the single event-loop
// goroutine, same as every other table in this package.
type Table struct {
	faces    map[defn.FaceId]Face
	nextId   defn.FaceId
	onAdd    []func(Face)
	onRemove []func(Face)
}

// NewTable constructs an empty FaceTable.
func NewTable() *Table {
	return &Table{
		faces:  make(map[defn.FaceId]Face),
		nextId: FirstFreeId,
	}
}

// OnAfterAdd registers a callback fired after a face is added.
func (t *Table) OnAfterAdd(f func(Face)) {
	t.onAdd = append(t.onAdd, f)
}

// OnBeforeRemove registers a callback fired before a face is destroyed.
// Strategies that index state by FaceId must subscribe here and purge it
// before any later event can reference the departed id.
func (t *Table) OnBeforeRemove(f func(Face)) {
	t.onRemove = append(t.onRemove, f)
}

// Add assigns the next sequential FaceId and stores an owning reference.
func (t *Table) Add(f Face) defn.FaceId {
	id := t.nextId
	t.nextId++
	t.faces[id] = f

	f.setFaceId(id)
	for _, cb := range t.onAdd {
		cb(f)
	}
	return id
}

// AddReserved assigns a caller-chosen id, failing if already in use.
func (t *Table) AddReserved(f Face, id defn.FaceId) error {
	if _, exists := t.faces[id]; exists {
		return ndn.ErrFaceExists
	}
	t.faces[id] = f

	f.setFaceId(id)
	for _, cb := range t.onAdd {
		cb(f)
	}
	return nil
}

// Get returns the face with the given id, or nil.
func (t *Table) Get(id defn.FaceId) Face {
	return t.faces[id]
}

// Remove fires before_remove, then destroys the owning reference.
func (t *Table) Remove(id defn.FaceId) {
	f, ok := t.faces[id]
	if !ok {
		return
	}

	for _, cb := range t.onRemove {
		cb(f)
	}

	delete(t.faces, id)
	f.Close()
}

// Size returns the number of faces currently registered.
func (t *Table) Size() int {
	return len(t.faces)
}

// All returns every registered face, ordered by FaceId.
func (t *Table) All() []Face {
	ids := make([]defn.FaceId, 0, len(t.faces))
	for id := range t.faces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	faces := make([]Face, 0, len(t.faces))
	for _, id := range ids {
		faces = append(faces, t.faces[id])
	}
	return faces
}
