/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import (
	enc "github.com/named-data/yanfd/std/encoding"
)

// StrategyEntry is the narrow view of a strategy instance the table package
// needs: its registered Name (e.g. /localhost/nfd/strategy/best-route/v=5).
// Defined here rather than imported from fw/fw so table never depends on
// fw/fw, which itself depends on table.
type StrategyEntry interface {
	Name() enc.Name
}

// baseStrategyChoiceEntry is one name-tree node recording which strategy
// governs a prefix.
type baseStrategyChoiceEntry struct {
	name     enc.Name
	strategy StrategyEntry
}

// Name returns the entry's prefix.
func (e *baseStrategyChoiceEntry) Name() enc.Name { return e.name }

// Strategy returns the strategy instance installed at this prefix.
func (e *baseStrategyChoiceEntry) Strategy() StrategyEntry { return e.strategy }

// StrategyChoice maps Name prefixes to the strategy instance responsible
// for forwarding Interests under them. The root always has an
// entry once Insert is called for the root Name, so FindEffectiveStrategy
// never returns nil after initialization.
type StrategyChoice struct {
	trie *nameTrie[*baseStrategyChoiceEntry]
}

// NewStrategyChoice constructs an empty StrategyChoice table. Callers must
// Insert an entry for the root Name before use so FindEffectiveStrategy has
// a default to fall back on.
func NewStrategyChoice() *StrategyChoice {
	return &StrategyChoice{trie: newNameTrie[*baseStrategyChoiceEntry]()}
}

// Returns a string identifying this table for logging.
func (sc *StrategyChoice) String() string {
	return "strategy-choice"
}

// Insert sets prefix's strategy, overwriting any existing choice at exactly
// that prefix. Returns the entry and whether it was newly created.
func (sc *StrategyChoice) Insert(prefix enc.Name, strategy StrategyEntry) (*baseStrategyChoiceEntry, bool) {
	node := sc.trie.getOrInsert(prefix)
	created := !node.hasValue
	if created {
		node.value = &baseStrategyChoiceEntry{name: prefix.Clone()}
		node.hasValue = true
	}
	node.value.strategy = strategy
	return node.value, created
}

// Erase removes the strategy choice at exactly prefix, if any. Erasing the
// root entry is the caller's mistake to avoid; FindEffectiveStrategy will
// simply return nil for everything afterwards.
func (sc *StrategyChoice) Erase(prefix enc.Name) {
	sc.trie.erase(prefix)
}

// FindEffectiveStrategy returns the strategy governing name: the strategy
// installed at the longest prefix of name that has one.
func (sc *StrategyChoice) FindEffectiveStrategy(name enc.Name) StrategyEntry {
	e, ok, _ := sc.trie.longestPrefixMatch(name)
	if !ok {
		return nil
	}
	return e.strategy
}

// FindEffectiveStrategyEntry is like FindEffectiveStrategy but also returns
// the StrategyChoice entry itself, for management/introspection use.
func (sc *StrategyChoice) FindEffectiveStrategyEntry(name enc.Name) (*baseStrategyChoiceEntry, bool) {
	e, ok, _ := sc.trie.longestPrefixMatch(name)
	return e, ok
}

// HasStrategy reports whether a strategy is installed at exactly prefix
// (as opposed to merely being effective there via a shorter prefix).
func (sc *StrategyChoice) HasStrategy(prefix enc.Name) bool {
	node, ok := sc.trie.get(prefix)
	return ok && node.hasValue
}

// GetAll returns every StrategyChoice entry, for diagnostics and tests.
func (sc *StrategyChoice) GetAll() []*baseStrategyChoiceEntry {
	return sc.trie.all()
}
