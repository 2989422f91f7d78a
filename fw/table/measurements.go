/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import (
	"time"

	"github.com/named-data/yanfd/fw/scheduler"
	enc "github.com/named-data/yanfd/std/encoding"
)

// DefaultMeasurementsLifetime is the sliding-window lifetime an entry keeps
// after each touch absent a strategy-specified extension.
const DefaultMeasurementsLifetime = 16 * time.Second

// MeasurementsEntry is one name-tree node of the Measurements table: opaque
// strategy-specific state with a sliding-window lifetime.
// StrategyInfo is owned exclusively by whichever strategy populated it;
// Owner records that strategy's Name so MeasurementsAccessor can detect a
// runtime StrategyChoice change and purge stale state.
type MeasurementsEntry struct {
	node   *nameTrieNode[*MeasurementsEntry]
	name   enc.Name
	Owner  enc.Name
	Info   any
	expiry time.Time
	timer  scheduler.EventId
}

// Name returns the entry's prefix.
func (e *MeasurementsEntry) Name() enc.Name { return e.name }

// ExpirationTime returns when the entry will be evicted absent a touch.
func (e *MeasurementsEntry) ExpirationTime() time.Time { return e.expiry }

// Measurements is the name-tree of per-prefix measurement state strategies
// use to remember what they have learned about a namespace.
type Measurements struct {
	trie     *nameTrie[*MeasurementsEntry]
	sched    *scheduler.Scheduler
	lifetime time.Duration
}

// NewMeasurements constructs an empty Measurements table. sched is used to
// schedule the sliding-window eviction timer each entry carries; it may be
// nil for tests that never advance time and never expect eviction.
func NewMeasurements(sched *scheduler.Scheduler) *Measurements {
	return &Measurements{
		trie:     newNameTrie[*MeasurementsEntry](),
		sched:    sched,
		lifetime: DefaultMeasurementsLifetime,
	}
}

// Returns a string identifying this table for logging.
func (m *Measurements) String() string {
	return "measurements"
}

// Get returns the entry at name, creating the path (but not ancestor
// entries) if absent.
func (m *Measurements) Get(name enc.Name) *MeasurementsEntry {
	node := m.trie.getOrInsert(name)
	if !node.hasValue {
		e := &MeasurementsEntry{node: node, name: name.Clone()}
		node.value = e
		node.hasValue = true
		m.armTimer(e, m.lifetime)
	}
	return node.value
}

// GetParent returns the nearest populated ancestor of entry, climbing past
// name-tree nodes that were auto-created but never touched.
func (m *Measurements) GetParent(entry *MeasurementsEntry) (*MeasurementsEntry, bool) {
	n := entry.node.parent
	for n != nil {
		if n.hasValue {
			return n.value, true
		}
		n = n.parent
	}
	return nil, false
}

// FindLongestPrefixMatch returns the deepest populated entry on name's path,
// if any.
func (m *Measurements) FindLongestPrefixMatch(name enc.Name) (*MeasurementsEntry, bool) {
	node := m.trie.root
	var best *MeasurementsEntry
	found := false
	if node.hasValue {
		best, found = node.value, true
	}
	for _, c := range name {
		child, ok := node.children[c.Hash()]
		if !ok {
			break
		}
		node = child
		if node.hasValue {
			best, found = node.value, true
		}
	}
	return best, found
}

// FindLongestPrefixMatchForPitEntry is find_longest_prefix_match(pit_entry):
// the entry's canonical Interest Name is used as the lookup key.
func (m *Measurements) FindLongestPrefixMatchForPitEntry(pitEntry PitEntry) (*MeasurementsEntry, bool) {
	return m.FindLongestPrefixMatch(pitEntry.EncName())
}

// ExtendLifetime reschedules entry's expiry timer to max(current, now+d).
func (m *Measurements) ExtendLifetime(entry *MeasurementsEntry, d time.Duration) {
	if m.sched == nil {
		return
	}
	newExpiry := m.sched.Now().Add(d)
	if !entry.expiry.IsZero() && !newExpiry.After(entry.expiry) {
		return
	}
	m.armTimer(entry, d)
}

func (m *Measurements) armTimer(e *MeasurementsEntry, d time.Duration) {
	if m.sched == nil {
		return
	}
	m.sched.Cancel(e.timer)
	e.expiry = m.sched.Now().Add(d)
	e.timer = m.sched.Schedule(d, func() {
		if e.node.hasValue && e.node.value == e {
			e.node.hasValue = false
			e.node.value = nil
		}
	})
}

// GetAll returns every populated entry, for diagnostics and face cleanup.
func (m *Measurements) GetAll() []*MeasurementsEntry {
	return m.trie.all()
}

// MeasurementsAccessor constrains a strategy to only read/write entries it
// owns: on next access, an entry's StrategyInfo is purged when the strategy
// recorded as its Owner is no longer the effective strategy for the entry's
// prefix, or when this accessor's strategy is not effective there.
type MeasurementsAccessor struct {
	m     *Measurements
	sc    *StrategyChoice
	owner enc.Name
}

// NewMeasurementsAccessor builds an accessor scoped to a single strategy
// instance's Name.
func NewMeasurementsAccessor(m *Measurements, sc *StrategyChoice, owner enc.Name) *MeasurementsAccessor {
	return &MeasurementsAccessor{m: m, sc: sc, owner: owner}
}

func (a *MeasurementsAccessor) checkOwnership(e *MeasurementsEntry) {
	if e == nil || e.Info == nil {
		return
	}
	eff := a.sc.FindEffectiveStrategy(e.Name())
	if eff == nil || !eff.Name().Equal(a.owner) || !eff.Name().Equal(e.Owner) {
		e.Info = nil
		e.Owner = nil
	}
}

// Get returns (creating if needed) the entry at name, purging any stale
// cross-strategy state first.
func (a *MeasurementsAccessor) Get(name enc.Name) *MeasurementsEntry {
	e := a.m.Get(name)
	a.checkOwnership(e)
	return e
}

// GetParent mirrors Measurements.GetParent, purging stale state first.
func (a *MeasurementsAccessor) GetParent(entry *MeasurementsEntry) (*MeasurementsEntry, bool) {
	p, ok := a.m.GetParent(entry)
	if ok {
		a.checkOwnership(p)
	}
	return p, ok
}

// FindLongestPrefixMatch mirrors Measurements.FindLongestPrefixMatch, but
// only ever returns an entry carrying non-nil StrategyInfo owned by this
// accessor's strategy.
func (a *MeasurementsAccessor) FindLongestPrefixMatch(name enc.Name) (*MeasurementsEntry, bool) {
	node := a.m.trie.root
	var best *MeasurementsEntry
	found := false
	check := func(e *MeasurementsEntry) {
		a.checkOwnership(e)
		if e.Info != nil {
			best, found = e, true
		}
	}
	if node.hasValue {
		check(node.value)
	}
	for _, c := range name {
		child, ok := node.children[c.Hash()]
		if !ok {
			break
		}
		node = child
		if node.hasValue {
			check(node.value)
		}
	}
	return best, found
}

// FindLongestPrefixMatchForPitEntry mirrors the Measurements equivalent.
func (a *MeasurementsAccessor) FindLongestPrefixMatchForPitEntry(pitEntry PitEntry) (*MeasurementsEntry, bool) {
	return a.FindLongestPrefixMatch(pitEntry.EncName())
}

// ExtendLifetime mirrors Measurements.ExtendLifetime.
func (a *MeasurementsAccessor) ExtendLifetime(entry *MeasurementsEntry, d time.Duration) {
	a.m.ExtendLifetime(entry, d)
}

// GetAll returns every entry carrying strategy-info owned by this
// accessor's strategy.
func (a *MeasurementsAccessor) GetAll() []*MeasurementsEntry {
	var out []*MeasurementsEntry
	for _, e := range a.m.trie.all() {
		a.checkOwnership(e)
		if e.Info != nil {
			out = append(out, e)
		}
	}
	return out
}

// SetStrategyInfo stores info on entry, recording this accessor's strategy
// as the owner for the next cross-strategy ownership check.
func (a *MeasurementsAccessor) SetStrategyInfo(entry *MeasurementsEntry, info any) {
	entry.Info = info
	entry.Owner = a.owner
}
