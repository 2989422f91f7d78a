/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import (
	"sort"

	"github.com/named-data/yanfd/fw/defn"
	enc "github.com/named-data/yanfd/std/encoding"
)

// FibNextHopEntry is one (Face, cost) next hop of a Fib entry.
type FibNextHopEntry struct {
	Nexthop defn.FaceId
	Cost    uint64
}

// baseFibEntry is a node in the Fib's name trie. At most one next-hop per
// face is allowed; next hops are kept ordered by (cost asc,
// FaceId asc) so strategies iterating "in order" see a deterministic,
// allocation-free-on-read sequence.
type baseFibEntry struct {
	name     enc.Name
	nexthops []*FibNextHopEntry
}

// Name returns the entry's prefix.
func (e *baseFibEntry) Name() enc.Name {
	return e.name
}

// GetNextHops returns the entry's next hops, ordered by (cost, FaceId).
func (e *baseFibEntry) GetNextHops() []*FibNextHopEntry {
	return e.nexthops
}

func (e *baseFibEntry) sortNextHops() {
	sort.Slice(e.nexthops, func(i, j int) bool {
		a, b := e.nexthops[i], e.nexthops[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.Nexthop < b.Nexthop
	})
}

// FibEntry is the read-only view of a Fib entry strategies and the
// Forwarder are handed.
type FibEntry interface {
	Name() enc.Name
	GetNextHops() []*FibNextHopEntry
}

// Fib is the Forwarding Information Base: longest-prefix-match from a Name
// to a set of (Face, cost) next hops.
type Fib struct {
	trie *nameTrie[*baseFibEntry]
}

// NewFib constructs an empty Fib.
func NewFib() *Fib {
	return &Fib{trie: newNameTrie[*baseFibEntry]()}
}

// Returns a string identifying this table for logging.
func (f *Fib) String() string {
	return "fib"
}

// Insert finds or creates the entry for prefix, reporting whether it was
// newly created.
func (f *Fib) Insert(prefix enc.Name) (*baseFibEntry, bool) {
	node := f.trie.getOrInsert(prefix)
	if node.hasValue {
		return node.value, false
	}
	e := &baseFibEntry{name: prefix.Clone()}
	node.value = e
	node.hasValue = true
	return e, true
}

// emptyEntry is returned by FindLongestPrefixMatch when nothing matches, so
// the pipeline can uniformly call into strategy dispatch without a nil
// check.
var emptyEntry = &baseFibEntry{name: enc.Name{}}

// FindLongestPrefixMatch always returns a valid entry: a sentinel
// empty-prefix, no-next-hop entry if nothing in the Fib matches.
func (f *Fib) FindLongestPrefixMatch(name enc.Name) FibEntry {
	e, ok, _ := f.trie.longestPrefixMatch(name)
	if !ok {
		return emptyEntry
	}
	return e
}

// Erase removes the entry for prefix, if any.
func (f *Fib) Erase(prefix enc.Name) {
	f.trie.erase(prefix)
}

// AddOrUpdateNextHop sets face's cost on entry, inserting if absent.
func (f *Fib) AddOrUpdateNextHop(entry *baseFibEntry, face defn.FaceId, cost uint64) {
	for _, nh := range entry.nexthops {
		if nh.Nexthop == face {
			nh.Cost = cost
			entry.sortNextHops()
			return
		}
	}
	entry.nexthops = append(entry.nexthops, &FibNextHopEntry{Nexthop: face, Cost: cost})
	entry.sortNextHops()
}

// RemoveNextHop deletes face's next hop from entry, if present.
func (f *Fib) RemoveNextHop(entry *baseFibEntry, face defn.FaceId) {
	for i, nh := range entry.nexthops {
		if nh.Nexthop == face {
			entry.nexthops = append(entry.nexthops[:i], entry.nexthops[i+1:]...)
			return
		}
	}
}

// RemoveNextHopsForFace removes face from every Fib entry, used when a
// face is destroyed.
func (f *Fib) RemoveNextHopsForFace(face defn.FaceId) {
	for _, e := range f.trie.all() {
		f.RemoveNextHop(e, face)
	}
}

// GetAll returns every Fib entry, for diagnostics and tests.
func (f *Fib) GetAll() []*baseFibEntry {
	return f.trie.all()
}
