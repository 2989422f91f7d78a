/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package table

import (
	"container/list"
	"time"

	enc "github.com/named-data/yanfd/std/encoding"

	"github.com/named-data/yanfd/fw/scheduler"
)

// deadNonceKey identifies a (Name, Nonce) pair the DeadNonceList remembers
// having forwarded, to catch loops that outlive the originating PIT
// entry.
type deadNonceKey struct {
	nameHash uint64
	nonce    uint32
}

// DeadNonceList is a fixed-capacity FIFO of recently-forwarded (Name,
// Nonce) pairs, each expiring after a configured lifetime. A
// full list evicts its oldest entry regardless of remaining lifetime.
type DeadNonceList struct {
	lifetime time.Duration
	capacity int
	sched    *scheduler.Scheduler

	set   map[deadNonceKey]*list.Element
	order *list.List // front = oldest
}

type deadNonceListEntry struct {
	key    deadNonceKey
	expiry time.Time
}

// NewDeadNonceList constructs a DeadNonceList with the given lifetime and
// capacity. sched may be
// nil for tests that never advance time.
func NewDeadNonceList(lifetime time.Duration, capacity int, sched *scheduler.Scheduler) *DeadNonceList {
	return &DeadNonceList{
		lifetime: lifetime,
		capacity: capacity,
		sched:    sched,
		set:      make(map[deadNonceKey]*list.Element),
		order:    list.New(),
	}
}

// Returns a string identifying this table for logging.
func (d *DeadNonceList) String() string {
	return "dead-nonce-list"
}

func (d *DeadNonceList) key(name enc.Name, nonce uint32) deadNonceKey {
	return deadNonceKey{nameHash: name.Hash(), nonce: nonce}
}

// Has reports whether (name, nonce) is present and unexpired.
func (d *DeadNonceList) Has(name enc.Name, nonce uint32) bool {
	k := d.key(name, nonce)
	el, ok := d.set[k]
	if !ok {
		return false
	}
	if d.sched != nil && d.sched.Now().After(el.Value.(*deadNonceListEntry).expiry) {
		d.removeElement(el)
		return false
	}
	return true
}

// Add records (name, nonce), evicting the oldest entry first if the list is
// at capacity.
func (d *DeadNonceList) Add(name enc.Name, nonce uint32) {
	k := d.key(name, nonce)
	if el, ok := d.set[k]; ok {
		d.order.MoveToBack(el)
		el.Value.(*deadNonceListEntry).expiry = d.now().Add(d.lifetime)
		return
	}
	if d.capacity > 0 && len(d.set) >= d.capacity {
		d.evictOldest()
	}
	entry := &deadNonceListEntry{key: k, expiry: d.now().Add(d.lifetime)}
	el := d.order.PushBack(entry)
	d.set[k] = el
}

func (d *DeadNonceList) now() time.Time {
	if d.sched != nil {
		return d.sched.Now()
	}
	return time.Now()
}

func (d *DeadNonceList) evictOldest() {
	front := d.order.Front()
	if front != nil {
		d.removeElement(front)
	}
}

func (d *DeadNonceList) removeElement(el *list.Element) {
	entry := el.Value.(*deadNonceListEntry)
	delete(d.set, entry.key)
	d.order.Remove(el)
}

// Size returns the number of entries currently recorded.
func (d *DeadNonceList) Size() int {
	return len(d.set)
}
