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

package trie

import "github.com/equalitie/lessroutes/pkg/netspace"

// Entry is one aggregated route: a block and the gateway all of its
// addresses resolve to.
type Entry struct {
	Block   netspace.Block
	Gateway string
}

// Aggregate collapses the trie into the minimal set of same-gateway blocks
// whose union is exactly the assigned address space, in ascending order of
// block base. Two sibling subtrees merge when each aggregates to a single
// entry filling its whole half with the same gateway; a merged node then
// competes for merging one level up, so compression is transitive all the
// way to the root.
//
// The walk is an explicit-stack post-order pass (no recursion, the v6 tree
// is up to 128 levels deep): a first sweep lays out frames parent-first, a
// reverse sweep computes results children-first.
func (t *Trie) Aggregate() []Entry {
	type frame struct {
		node  int32
		block netspace.Block
		child [2]int
	}
	frames := []frame{{node: 0, child: [2]int{-1, -1}}}
	for i := 0; i < len(frames); i++ {
		cur := frames[i]
		for bit := 0; bit < 2; bit++ {
			c := t.nodes[cur.node].children[bit]
			if c == nilNode {
				continue
			}
			left, right, err := t.family.Split(cur.block)
			if err != nil {
				// Nodes at depth W never have children by construction.
				panic(err)
			}
			half := left
			if bit == 1 {
				half = right
			}
			frames[i].child[bit] = len(frames)
			frames = append(frames, frame{node: c, block: half, child: [2]int{-1, -1}})
		}
	}

	results := make([][]Entry, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		cur := frames[i]
		if g := t.nodes[cur.node].gateway; g != noGateway {
			results[i] = []Entry{{Block: cur.block, Gateway: t.labels[g]}}
			continue
		}
		var left, right []Entry
		if cur.child[0] >= 0 {
			left = results[cur.child[0]]
		}
		if cur.child[1] >= 0 {
			right = results[cur.child[1]]
		}
		if len(left) == 1 && len(right) == 1 && left[0].Gateway == right[0].Gateway {
			lh, rh, _ := t.family.Split(cur.block)
			if left[0].Block == lh && right[0].Block == rh {
				results[i] = []Entry{{Block: cur.block, Gateway: left[0].Gateway}}
				continue
			}
		}
		out := make([]Entry, 0, len(left)+len(right))
		out = append(out, left...)
		out = append(out, right...)
		results[i] = out
	}
	return results[0]
}
