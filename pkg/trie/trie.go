/*
 * Copyright (C) 2024 eQualitie, inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package trie holds the assignment trie: a binary prefix trie over one
// address family that resolves overlapping (block, gateway) assignments into
// a definitive gateway-per-address mapping, and aggregates it into the
// minimal set of covering routes.
package trie

import (
	"fmt"

	"github.com/equalitie/lessroutes/pkg/netspace"
	"lukechampine.com/uint128"
)

const (
	nilNode   = int32(-1)
	noGateway = int32(-1)
)

// node lives in the trie arena. Exactly one of three states:
// gateway set with no children (leaf-assigned), children with no gateway
// (split), or neither (unassigned).
type node struct {
	children [2]int32
	gateway  int32
}

// Trie is an arena-backed assignment trie for a single address family.
// It is built by one goroutine and must not be mutated after Aggregate.
type Trie struct {
	family   netspace.Family
	nodes    []node
	labels   []string
	labelIdx map[string]int32
}

// New returns an empty trie over the given family's address space.
func New(family netspace.Family) *Trie {
	t := &Trie{family: family, labelIdx: make(map[string]int32)}
	t.newNode(noGateway) // root
	return t
}

// Family returns the address family this trie covers.
func (t *Trie) Family() netspace.Family {
	return t.family
}

func (t *Trie) newNode(gateway int32) int32 {
	t.nodes = append(t.nodes, node{children: [2]int32{nilNode, nilNode}, gateway: gateway})
	return int32(len(t.nodes) - 1)
}

func (t *Trie) intern(label string) int32 {
	if i, ok := t.labelIdx[label]; ok {
		return i
	}
	i := int32(len(t.labels))
	t.labels = append(t.labels, label)
	t.labelIdx[label] = i
	return i
}

// InsertDefault assigns the whole address space to gateway. It must be
// applied before any specific insertions so that those insertions override
// parts of the default.
func (t *Trie) InsertDefault(gateway string) error {
	return t.Insert(netspace.Block{}, gateway)
}

// Insert assigns block to gateway. A block covering previously inserted
// finer assignments replaces them entirely; a block strictly inside an
// existing leaf assignment narrows it, leaving the rest of the leaf on its
// original gateway. Re-inserting the same block overwrites it (last write
// wins), so the caller's insertion order is part of the contract.
func (t *Trie) Insert(b netspace.Block, gateway string) error {
	if err := t.family.CheckBlock(b); err != nil {
		return fmt.Errorf("insert into %s trie: %w", t.family, err)
	}
	gw := t.intern(gateway)
	cur := int32(0)
	for i := 0; i < b.Length; i++ {
		// A leaf-assigned ancestor on the path gets split: both halves
		// inherit its gateway, then the walk continues into one of them.
		if g := t.nodes[cur].gateway; g != noGateway {
			left := t.newNode(g)
			right := t.newNode(g)
			t.nodes[cur].gateway = noGateway
			t.nodes[cur].children = [2]int32{left, right}
		}
		bit := t.family.Bit(b.Base, i)
		next := t.nodes[cur].children[bit]
		if next == nilNode {
			next = t.newNode(noGateway)
			t.nodes[cur].children[bit] = next
		}
		cur = next
	}
	// The whole subtree under block is replaced by a single leaf. Pruned
	// arena nodes are abandoned; the trie lives for one run only.
	t.nodes[cur].gateway = gw
	t.nodes[cur].children = [2]int32{nilNode, nilNode}
	return nil
}

// Lookup reports the gateway for addr, via the deepest leaf-assigned node on
// its path. Meant for verification, not for the aggregation hot path.
func (t *Trie) Lookup(addr uint128.Uint128) (string, bool) {
	cur := int32(0)
	best := noGateway
	for i := 0; ; i++ {
		if g := t.nodes[cur].gateway; g != noGateway {
			best = g
		}
		if i == t.family.Width() {
			break
		}
		next := t.nodes[cur].children[t.family.Bit(addr, i)]
		if next == nilNode {
			break
		}
		cur = next
	}
	if best == noGateway {
		return "", false
	}
	return t.labels[best], true
}
