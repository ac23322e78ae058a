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

package delegation

import (
	"bufio"
	"io"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// parseDelegated reads one registry file in the "delegated" statistics
// format (RIR statistics exchange format): pipe-separated lines
//
//	registry|cc|type|start|value|date|status[|opaque-id...]
//
// Only allocated and assigned ipv4/ipv6 entries with a usable country code
// are kept. The version header, summary lines and comments are skipped.
func parseDelegated(name string, r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 7 {
			// version header or summary line
			continue
		}
		cc := strings.ToUpper(fields[1])
		typ := fields[2]
		status := fields[6]
		if status != "allocated" && status != "assigned" {
			continue
		}
		if !isCountryCode(cc) || cc == "ZZ" {
			continue
		}
		switch typ {
		case "ipv4":
			start, err := netip.ParseAddr(fields[3])
			if err != nil || !start.Is4() {
				return nil, errors.Errorf("%s line %d: bad ipv4 start %q", name, lineNo, fields[3])
			}
			count, err := strconv.ParseUint(fields[4], 10, 32)
			if err != nil || count == 0 {
				return nil, errors.Errorf("%s line %d: bad ipv4 count %q", name, lineNo, fields[4])
			}
			for _, p := range rangeToPrefixes(start, uint32(count)) {
				records = append(records, Record{Country: cc, Prefix: p})
			}
		case "ipv6":
			start, err := netip.ParseAddr(fields[3])
			if err != nil || !start.Is6() || start.Is4In6() {
				return nil, errors.Errorf("%s line %d: bad ipv6 start %q", name, lineNo, fields[3])
			}
			length, err := strconv.Atoi(fields[4])
			if err != nil || length < 0 || length > 128 {
				return nil, errors.Errorf("%s line %d: bad ipv6 length %q", name, lineNo, fields[4])
			}
			p, err := start.Prefix(length)
			if err != nil {
				return nil, errors.Errorf("%s line %d: bad ipv6 block %s/%d", name, lineNo, start, length)
			}
			if p.Addr() != start {
				// Host bits set beyond the prefix. Published occasionally;
				// not worth failing the whole download.
				log.Warnf("%s line %d: non-canonical ipv6 block %s/%d, skipping", name, lineNo, start, length)
				continue
			}
			records = append(records, Record{Country: cc, Prefix: p})
		default:
			// asn entries
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s delegations", name)
	}
	return records, nil
}

func isCountryCode(cc string) bool {
	if len(cc) != 2 {
		return false
	}
	return cc[0] >= 'A' && cc[0] <= 'Z' && cc[1] >= 'A' && cc[1] <= 'Z'
}

// rangeToPrefixes decomposes an address range, given as a start address plus
// a host count, into the minimal list of aligned CIDR blocks. Registry ipv4
// entries use this form and their counts are not always powers of two.
func rangeToPrefixes(start netip.Addr, count uint32) []netip.Prefix {
	a4 := start.As4()
	cur := uint64(a4[0])<<24 | uint64(a4[1])<<16 | uint64(a4[2])<<8 | uint64(a4[3])
	end := cur + uint64(count) - 1

	var out []netip.Prefix
	for cur <= end {
		// Widest block that starts at cur, stays aligned, and fits in the
		// remaining range.
		align := bits.TrailingZeros64(cur)
		if cur == 0 {
			align = 32
		}
		size := bits.Len64(end-cur+1) - 1
		k := align
		if size < k {
			k = size
		}
		addr := netip.AddrFrom4([4]byte{byte(cur >> 24), byte(cur >> 16), byte(cur >> 8), byte(cur)})
		out = append(out, netip.PrefixFrom(addr, 32-k))
		cur += uint64(1) << k
	}
	return out
}
