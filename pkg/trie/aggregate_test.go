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

import (
	"testing"

	"github.com/gaissmai/bart"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/equalitie/lessroutes/pkg/netspace"
)

// lastAddr returns the highest address inside the block.
func lastAddr(f netspace.Family, b netspace.Block) uint128.Uint128 {
	hostMask := f.Mask(f.Width()).Xor(f.Mask(b.Length))
	return b.Base.Or(hostMask)
}

func buildSample(t *testing.T) *Trie {
	t.Helper()
	tr := New(netspace.IPv4)
	require.NoError(t, tr.InsertDefault("core"))
	insert(t, tr, "10.0.0.0/8", "asia")
	insert(t, tr, "10.1.0.0/16", "emea")
	insert(t, tr, "10.1.128.0/17", "asia")
	insert(t, tr, "172.16.0.0/12", "emea")
	insert(t, tr, "192.168.0.0/16", "asia")
	insert(t, tr, "192.169.0.0/16", "asia")
	return tr
}

func TestAggregatePartition(t *testing.T) {
	tr := buildSample(t)
	entries := tr.Aggregate()
	require.NotEmpty(t, entries)

	f := tr.Family()
	// Ascending, pairwise disjoint, and contiguous: with a default gateway
	// set, the entries must tile the entire address space.
	require.True(t, entries[0].Block.Base.IsZero())
	for i := 1; i < len(entries); i++ {
		prevEnd := lastAddr(f, entries[i-1].Block)
		require.Equal(t, prevEnd.Add64(1), entries[i].Block.Base,
			"entry %d does not start right after its predecessor", i)
	}
	require.Equal(t, f.Mask(f.Width()), lastAddr(f, entries[len(entries)-1].Block))
}

func TestAggregateMinimality(t *testing.T) {
	tr := buildSample(t)
	entries := tr.Aggregate()
	f := tr.Family()

	for i := 1; i < len(entries); i++ {
		a, b := entries[i-1], entries[i]
		if a.Gateway != b.Gateway || a.Block.Length != b.Block.Length {
			continue
		}
		// Same length, same gateway, adjacent: they must not be two halves
		// of one aligned parent block.
		parent := f.BlockOf(a.Block.Base, a.Block.Length-1)
		left, right, err := f.Split(parent)
		require.NoError(t, err)
		mergeable := left == a.Block && right == b.Block
		require.False(t, mergeable, "entries %d and %d should have been merged", i-1, i)
	}
}

// The emitted routes must induce the same address-to-gateway mapping as the
// trie itself. A bart table built from the aggregated output serves as an
// independent longest-prefix-match oracle.
func TestAggregateAgainstLookupTable(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func(t *testing.T) *Trie
	}{
		{"v4", buildSample},
		{"v6", func(t *testing.T) *Trie {
			tr := New(netspace.IPv6)
			require.NoError(t, tr.InsertDefault("core"))
			insert(t, tr, "2001:db8::/32", "asia")
			insert(t, tr, "2001:db8:aaaa::/48", "emea")
			insert(t, tr, "2400::/12", "asia")
			insert(t, tr, "2600::/12", "emea")
			// Sibling /127s collapse to a /126 before the comparison.
			insert(t, tr, "2001:db8:ffff::/127", "emea")
			insert(t, tr, "2001:db8:ffff::2/127", "emea")
			return tr
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := tc.build(t)
			entries := tr.Aggregate()
			f := tr.Family()

			table := new(bart.Table[string])
			for _, e := range entries {
				table.Insert(f.Prefix(e.Block), e.Gateway)
			}

			// Probe every entry's boundaries plus a point just outside.
			var probes []uint128.Uint128
			for _, e := range entries {
				probes = append(probes, e.Block.Base, lastAddr(f, e.Block))
				if !lastAddr(f, e.Block).Equals(f.Mask(f.Width())) {
					probes = append(probes, lastAddr(f, e.Block).Add64(1))
				}
			}
			for _, p := range probes {
				want, wantOK := tr.Lookup(p)
				got, gotOK := table.Lookup(f.Addr(p))
				require.Equal(t, wantOK, gotOK, "probe %s", f.AddrText(p))
				require.Equal(t, want, got, "probe %s", f.AddrText(p))
			}
		})
	}
}

func TestAggregateEmptyTrie(t *testing.T) {
	require.Empty(t, New(netspace.IPv4).Aggregate())
	require.Empty(t, New(netspace.IPv6).Aggregate())
}
