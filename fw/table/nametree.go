/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import enc "github.com/named-data/yanfd/std/encoding"

// nameTrie is a component-at-a-time trie keyed by each component's own hash
// (enc.Component.Hash, which bottoms out in cespare/xxhash), used to back
// Fib, Measurements, and StrategyChoice. Longest-prefix-match walks down
// from the root, remembering the deepest node carrying a value, visiting at
// most len(name)+1 nodes and allocating nothing on a lookup hit.
//
// Each table owns its own trie rather than sharing one structure across
// Fib/Measurements/StrategyChoice/Pit: the four have independent entry
// lifetimes (StrategyChoice entries, for instance, outlive the Fib entries
// that share their prefix), so a single shared tree would buy memory
// locality at the cost of coupling their erase paths together.
type nameTrieNode[T any] struct {
	parent   *nameTrieNode[T]
	children map[uint64]*nameTrieNode[T]
	value    T
	hasValue bool
}

func newNameTrieNode[T any]() *nameTrieNode[T] {
	return &nameTrieNode[T]{children: make(map[uint64]*nameTrieNode[T])}
}

type nameTrie[T any] struct {
	root *nameTrieNode[T]
}

func newNameTrie[T any]() *nameTrie[T] {
	return &nameTrie[T]{root: newNameTrieNode[T]()}
}

// getOrInsert walks/creates the path for name and returns its node.
func (t *nameTrie[T]) getOrInsert(name enc.Name) *nameTrieNode[T] {
	node := t.root
	for _, c := range name {
		h := c.Hash()
		child, ok := node.children[h]
		if !ok {
			child = newNameTrieNode[T]()
			child.parent = node
			node.children[h] = child
		}
		node = child
	}
	return node
}

// get returns the node exactly at name, without creating it.
func (t *nameTrie[T]) get(name enc.Name) (*nameTrieNode[T], bool) {
	node := t.root
	for _, c := range name {
		child, ok := node.children[c.Hash()]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

// longestPrefixMatch returns the deepest ancestor (inclusive) of name that
// carries a value, along with how many components were matched.
func (t *nameTrie[T]) longestPrefixMatch(name enc.Name) (T, bool, int) {
	node := t.root
	var best T
	found := false
	depth := 0
	if node.hasValue {
		best, found, depth = node.value, true, 0
	}
	for i, c := range name {
		child, ok := node.children[c.Hash()]
		if !ok {
			break
		}
		node = child
		if node.hasValue {
			best, found, depth = node.value, true, i+1
		}
	}
	return best, found, depth
}

// erase deletes the value at name if present. It does not prune now-empty
// nodes; entries are rare enough relative to lookups that pruning is not
// worth the extra bookkeeping this core's callers would need.
func (t *nameTrie[T]) erase(name enc.Name) {
	if node, ok := t.get(name); ok {
		node.hasValue = false
		var zero T
		node.value = zero
	}
}

// all walks the trie collecting every node's value in no particular order.
func (t *nameTrie[T]) all() []T {
	var out []T
	var walk func(n *nameTrieNode[T])
	walk = func(n *nameTrieNode[T]) {
		if n.hasValue {
			out = append(out, n.value)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}
