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

// Package config turns command-line options into a validated run
// configuration: parsed gateway mappings and a country-to-gateway index.
package config

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/equalitie/lessroutes/pkg/api"
)

// Options mirrors the command-line flags.
type Options struct {
	Gateways       []string
	DefaultGateway string
	OutputV4       string
	NoV4           bool
	OutputV6       string
	NoV6           bool
	CacheFile      string
	NoCache        bool
	Update         bool
	NoUpdate       bool
	LogLevel       string
}

// Config is the validated run configuration.
type Config struct {
	Options
	// Mappings keeps the gateways in command-line order.
	Mappings []api.GatewayMapping
	// ByCountry indexes the gateway serving each country.
	ByCountry map[string]string
}

// ParseConfig validates opts and resolves the gateway specs.
func ParseConfig(opts *Options) (*Config, error) {
	if len(opts.Gateways) == 0 {
		return nil, errors.New("at least one --gateway mapping is required")
	}
	if opts.Update && opts.NoUpdate {
		return nil, errors.New("--update and --no-update are mutually exclusive")
	}
	if opts.NoCache && (opts.Update || opts.NoUpdate) {
		return nil, errors.New("--no-cache cannot be combined with --update or --no-update")
	}
	if opts.NoV4 && opts.NoV6 {
		return nil, errors.New("--no-v4 and --no-v6 together leave nothing to compute")
	}

	cfg := &Config{Options: *opts, ByCountry: make(map[string]string)}
	for _, spec := range opts.Gateways {
		m, err := parseGatewaySpec(spec)
		if err != nil {
			return nil, err
		}
		for _, cc := range m.Countries {
			if prev, ok := cfg.ByCountry[cc]; ok && prev != m.Gateway {
				return nil, errors.Errorf("country %s is mapped to both %s and %s", cc, prev, m.Gateway)
			}
			cfg.ByCountry[cc] = m.Gateway
		}
		cfg.Mappings = append(cfg.Mappings, m)
	}

	if opts.DefaultGateway != "" && !cfg.hasGateway(opts.DefaultGateway) {
		return nil, errors.Errorf("default gateway %s does not appear in any --gateway mapping", opts.DefaultGateway)
	}
	return cfg, nil
}

func (c *Config) hasGateway(name string) bool {
	for _, m := range c.Mappings {
		if m.Gateway == name {
			return true
		}
	}
	return false
}

// parseGatewaySpec parses one "name=CC1,CC2,..." mapping. Country codes are
// two-letter ISO 3166 codes, case-insensitive on input; duplicates within a
// spec are collapsed.
func parseGatewaySpec(spec string) (api.GatewayMapping, error) {
	name, list, found := strings.Cut(spec, "=")
	if !found {
		return api.GatewayMapping{}, errors.Errorf("gateway mapping %q: expected name=CC1,CC2,...", spec)
	}
	if name == "" {
		return api.GatewayMapping{}, errors.Errorf("gateway mapping %q: empty gateway name", spec)
	}
	m := api.GatewayMapping{Gateway: name}
	seen := make(map[string]bool)
	for _, raw := range strings.Split(list, ",") {
		cc := strings.ToUpper(strings.TrimSpace(raw))
		if len(cc) != 2 || cc[0] < 'A' || cc[0] > 'Z' || cc[1] < 'A' || cc[1] > 'Z' {
			return api.GatewayMapping{}, errors.Errorf("gateway mapping %q: invalid country code %q", spec, raw)
		}
		if seen[cc] {
			continue
		}
		seen[cc] = true
		m.Countries = append(m.Countries, cc)
	}
	if len(m.Countries) == 0 {
		return api.GatewayMapping{}, errors.Errorf("gateway mapping %q: no countries listed", spec)
	}
	return m, nil
}
