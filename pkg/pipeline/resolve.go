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

package pipeline

import (
	"net/netip"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/equalitie/lessroutes/pkg/delegation"
	"github.com/equalitie/lessroutes/pkg/netspace"
)

// Assignment pairs a delegated block with the gateway serving its country.
type Assignment struct {
	Block   netspace.Block
	Gateway string
}

// Resolve selects the delegated blocks of the given family whose countries
// are mapped to a gateway, in a deterministic order: countries sorted
// lexicographically, blocks within a country in registry order. Countries
// without a gateway mapping are dropped; duplicate delegations pass through
// unchanged, the trie resolves them.
func Resolve(f netspace.Family, dels *delegation.Delegations, byCountry map[string]string) []Assignment {
	countries := make([]string, 0, len(dels.ByCountry))
	for cc := range dels.ByCountry {
		countries = append(countries, cc)
	}
	sort.Strings(countries)

	var out []Assignment
	for _, cc := range countries {
		gw, ok := byCountry[cc]
		if !ok {
			continue
		}
		for _, s := range dels.ByCountry[cc] {
			pfx, err := netip.ParsePrefix(s)
			if err != nil {
				log.Warnf("skipping malformed delegation %q for %s: %v", s, cc, err)
				continue
			}
			fam, block, err := netspace.FromPrefix(pfx)
			if err != nil {
				log.Warnf("skipping delegation %q for %s: %v", s, cc, err)
				continue
			}
			if fam != f {
				continue
			}
			out = append(out, Assignment{Block: block, Gateway: gw})
		}
	}
	return out
}
