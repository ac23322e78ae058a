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

// Package delegation is the registry provider: it downloads the delegation
// statistics published by the five regional internet registries, parses them
// into per-country address blocks, and caches the result on disk.
package delegation

import "net/netip"

// Record is one parsed registry entry: an address block delegated to a
// country.
type Record struct {
	Country string
	Prefix  netip.Prefix
}

// Delegations groups delegated prefixes by ISO 3166 country code. Prefixes
// stay in textual form; this struct is also the cache file schema.
type Delegations struct {
	ByCountry map[string][]string `json:"by_country"`
}

type source struct {
	name string
	url  string
}

// Delegation statistics endpoints. ARIN and RIPE publish the extended
// format only; the others serve both, and the plain format is enough here.
var sources = []source{
	{"apnic", "https://ftp.apnic.net/stats/apnic/delegated-apnic-latest"},
	{"arin", "https://ftp.arin.net/pub/stats/arin/delegated-arin-extended-latest"},
	{"ripe", "https://ftp.ripe.net/pub/stats/ripencc/delegated-ripencc-extended-latest"},
	{"lacnic", "https://ftp.lacnic.net/pub/stats/lacnic/delegated-lacnic-latest"},
	{"afrinic", "https://ftp.afrinic.net/pub/stats/afrinic/delegated-afrinic-latest"},
}

func groupByCountry(records []Record) *Delegations {
	byCountry := make(map[string][]string)
	for _, r := range records {
		byCountry[r.Country] = append(byCountry[r.Country], r.Prefix.String())
	}
	return &Delegations{ByCountry: byCountry}
}
