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

// Package netspace models IPv4/IPv6 address space as fixed-width unsigned
// integers and provides the bit-level primitives the assignment trie is
// built on. Addresses are held in a 128-bit word; IPv4 occupies the low 32
// bits. All arithmetic is exact unsigned integer arithmetic.
package netspace

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"lukechampine.com/uint128"
)

// Family selects the address family and with it the bit width W of the
// address space.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// Block is a CIDR block in canonical form: all bits of Base below position
// Length are zero. Base is interpreted over the low Width() bits of the
// 128-bit word.
type Block struct {
	Base   uint128.Uint128
	Length int
}

// Width returns W: the number of address bits of the family.
func (f Family) Width() int {
	if f == IPv4 {
		return 32
	}
	return 128
}

func (f Family) String() string {
	if f == IPv4 {
		return "ipv4"
	}
	return "ipv6"
}

// ones returns a word with the low Width() bits set.
func (f Family) ones() uint128.Uint128 {
	if f == IPv4 {
		return uint128.From64(0xffffffff)
	}
	return uint128.Max
}

// Bit returns the i-th bit of addr, counting from the most significant bit
// of the W-bit address (bit 0 = MSB). i must be in [0, W).
func (f Family) Bit(addr uint128.Uint128, i int) int {
	return int(addr.Rsh(uint(f.Width()-1-i)).Lo & 1)
}

// Mask returns the netmask word for a prefix of the given length: length
// leading one-bits over W bits.
func (f Family) Mask(length int) uint128.Uint128 {
	if length <= 0 {
		return uint128.Zero
	}
	return f.ones().Lsh(uint(f.Width() - length)).And(f.ones())
}

// BlockOf canonicalizes addr to the base of the length-sized block that
// contains it.
func (f Family) BlockOf(addr uint128.Uint128, length int) Block {
	return Block{Base: addr.And(f.Mask(length)), Length: length}
}

// Contains reports whether addr falls inside the block, comparing only the
// top Length bits.
func (f Family) Contains(b Block, addr uint128.Uint128) bool {
	return addr.And(f.Mask(b.Length)).Equals(b.Base)
}

// Split returns the two half-blocks of b: left has bit Length set to 0,
// right has it set to 1. Splitting a single-address block is a domain error.
func (f Family) Split(b Block) (Block, Block, error) {
	if b.Length >= f.Width() {
		return Block{}, Block{}, fmt.Errorf("cannot split %s block of length %d", f, b.Length)
	}
	half := b.Length + 1
	left := Block{Base: b.Base, Length: half}
	right := Block{Base: b.Base.Or(uint128.From64(1).Lsh(uint(f.Width() - half))), Length: half}
	return left, right, nil
}

// CheckBlock validates the caller contract on a block: length in [0, W] and
// a canonical base with no stray bits below the prefix or above the family
// width.
func (f Family) CheckBlock(b Block) error {
	if b.Length < 0 || b.Length > f.Width() {
		return fmt.Errorf("prefix length %d out of range for %s", b.Length, f)
	}
	if !b.Base.And(f.ones()).Equals(b.Base) {
		return fmt.Errorf("block base exceeds %s address width", f)
	}
	if !b.Base.And(f.Mask(b.Length)).Equals(b.Base) {
		return fmt.Errorf("block base has bits set beyond prefix length %d", b.Length)
	}
	return nil
}

// FromPrefix converts a parsed prefix into its family and canonical block.
func FromPrefix(p netip.Prefix) (Family, Block, error) {
	if !p.IsValid() {
		return 0, Block{}, fmt.Errorf("invalid prefix %v", p)
	}
	f := IPv6
	if p.Addr().Unmap().Is4() {
		f = IPv4
	}
	b := f.BlockOf(f.AddrValue(p.Addr()), p.Bits())
	return f, b, nil
}

// AddrValue converts a netip address into the family's integer form.
func (f Family) AddrValue(a netip.Addr) uint128.Uint128 {
	if f == IPv4 {
		b := a.Unmap().As4()
		return uint128.From64(uint64(binary.BigEndian.Uint32(b[:])))
	}
	b := a.As16()
	return uint128.New(binary.BigEndian.Uint64(b[8:]), binary.BigEndian.Uint64(b[:8]))
}

// Addr converts an integer address back to its netip form.
func (f Family) Addr(v uint128.Uint128) netip.Addr {
	if f == IPv4 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.Lo))
		return netip.AddrFrom4(b)
	}
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], v.Hi)
	binary.BigEndian.PutUint64(b[8:], v.Lo)
	return netip.AddrFrom16(b)
}

// AddrText renders an integer address in the family's conventional text form.
func (f Family) AddrText(v uint128.Uint128) string {
	return f.Addr(v).String()
}

// MaskText renders the netmask for the given prefix length.
func (f Family) MaskText(length int) string {
	return f.Addr(f.Mask(length)).String()
}

// Prefix converts a block to netip form, mainly for logging and tests.
func (f Family) Prefix(b Block) netip.Prefix {
	return netip.PrefixFrom(f.Addr(b.Base), b.Length)
}
