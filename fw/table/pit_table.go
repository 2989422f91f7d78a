/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import (
	"time"

	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/scheduler"
	enc "github.com/named-data/yanfd/std/encoding"
)

// Pit is the Pending Interest Table: the set of outstanding
// Interest-shapes, keyed by (Name, selectors, ForwardingHint), each
// aggregating the downstreams (in-records) and upstreams (out-records)
// that reference it.
type Pit struct {
	trie    *nameTrie[[]*basePitEntry]
	nextTok uint32
	sched   *scheduler.Scheduler
}

// NewPit constructs an empty Pit. sched supplies the clock record
// timestamps are stamped with; nil falls back to wall time.
func NewPit(sched *scheduler.Scheduler) *Pit {
	return &Pit{trie: newNameTrie[[]*basePitEntry](), sched: sched}
}

// Returns a string identifying this table for logging.
func (p *Pit) String() string {
	return "pit"
}

// Insert finds or creates the entry matching interest's Name and
// selectors. On a re-hit, the existing entry is returned unchanged.
func (p *Pit) Insert(interest *defn.FwInterest, strategyName enc.Name) (*basePitEntry, bool) {
	node := p.trie.getOrInsert(interest.NameV)
	for _, e := range node.value {
		if selectorsEqual(&defn.FwInterest{
			CanBePrefixV:          e.canBePrefix,
			MustBeFreshV:          e.mustBeFresh,
			MinSuffixComponentsV:  e.minSuffixComponents,
			MaxSuffixComponentsV:  e.maxSuffixComponents,
			ChildSelectorV:        e.childSelector,
			ExcludeV:              e.exclude,
			PublisherPublicKeyLoc: e.pubKeyLocator,
			ForwardingHintV:       e.forwardingHintNew,
		}, interest) {
			return e, false
		}
	}

	p.nextTok++
	template := *interest
	template.NameV = interest.NameV.Clone()
	template.NonceV.Clear()
	e := &basePitEntry{
		encname:             interest.NameV.Clone(),
		canBePrefix:         interest.CanBePrefixV,
		mustBeFresh:         interest.MustBeFreshV,
		forwardingHintNew:   interest.ForwardingHintV,
		minSuffixComponents: interest.MinSuffixComponentsV,
		maxSuffixComponents: interest.MaxSuffixComponentsV,
		childSelector:       interest.ChildSelectorV,
		exclude:             interest.ExcludeV,
		pubKeyLocator:       interest.PublisherPublicKeyLoc,
		inRecords:           make(map[uint64]*PitInRecord),
		outRecords:          make(map[uint64]*PitOutRecord),
		token:               p.nextTok,
		strategyName:        strategyName,
		template:            &template,
	}
	if p.sched != nil {
		e.nowFn = p.sched.Now
	}
	node.value = append(node.value, e)
	node.hasValue = true
	return e, true
}

// FindAllDataMatches returns every entry whose canonical Interest matches
// data per NDN matching rules: Name equality, or Name-prefix plus
// CanBePrefix, plus MustBeFresh/freshness satisfaction.
func (p *Pit) FindAllDataMatches(data *defn.FwData) []*basePitEntry {
	var matches []*basePitEntry
	node := p.trie.root
	if node.hasValue {
		matches = append(matches, matchDataAt(node.value, data, len(data.NameV))...)
	}
	for i, c := range data.NameV {
		child, ok := node.children[c.Hash()]
		if !ok {
			break
		}
		node = child
		if node.hasValue {
			remaining := len(data.NameV) - (i + 1)
			matches = append(matches, matchDataAt(node.value, data, remaining)...)
		}
	}
	return matches
}

func matchDataAt(entries []*basePitEntry, data *defn.FwData, suffixLen int) []*basePitEntry {
	var out []*basePitEntry
	for _, e := range entries {
		if suffixLen > 0 && !e.canBePrefix {
			continue
		}
		if e.mustBeFresh {
			fresh, ok := data.FreshnessV.Get()
			if !ok || fresh <= 0 {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// Find returns the entry matching interest's Name and selectors, without
// creating one.
func (p *Pit) Find(interest *defn.FwInterest) PitEntry {
	node, ok := p.trie.get(interest.NameV)
	if !ok {
		return nil
	}
	for _, e := range node.value {
		if selectorsEqual(&defn.FwInterest{
			CanBePrefixV:          e.canBePrefix,
			MustBeFreshV:          e.mustBeFresh,
			MinSuffixComponentsV:  e.minSuffixComponents,
			MaxSuffixComponentsV:  e.maxSuffixComponents,
			ChildSelectorV:        e.childSelector,
			ExcludeV:              e.exclude,
			PublisherPublicKeyLoc: e.pubKeyLocator,
			ForwardingHintV:       e.forwardingHintNew,
		}, interest) {
			return e
		}
	}
	return nil
}

// Erase removes entry from the Pit. Cancelling any timers held by its
// strategy-info is the caller's responsibility (the Forwarder owns the
// scheduler handles, not the table).
func (p *Pit) Erase(entry PitEntry) {
	base, ok := entry.(*basePitEntry)
	if !ok {
		return
	}
	node, ok := p.trie.get(base.encname)
	if !ok {
		return
	}
	for i, e := range node.value {
		if e == base {
			node.value = append(node.value[:i], node.value[i+1:]...)
			break
		}
	}
	if len(node.value) == 0 {
		node.hasValue = false
	}
}

// All returns every PIT entry currently outstanding, for diagnostics/tests.
func (p *Pit) All() []*basePitEntry {
	var out []*basePitEntry
	for _, bucket := range p.trie.all() {
		out = append(out, bucket...)
	}
	return out
}

// DefaultStragglerTimeout is the grace period a satisfied PIT entry with no
// in-records left is retained for, to absorb straggling duplicates.
const DefaultStragglerTimeout = 100 * time.Millisecond
