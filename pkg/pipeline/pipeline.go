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

// Package pipeline wires the stages together: obtain delegations, resolve
// them against the gateway mappings, build and aggregate the tries, and
// write the route files.
package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/equalitie/lessroutes/pkg/config"
	"github.com/equalitie/lessroutes/pkg/delegation"
	"github.com/equalitie/lessroutes/pkg/netspace"
)

// DelegationSource yields registry data. Satisfied by delegation.Provider.
type DelegationSource interface {
	Delegations(ctx context.Context) (*delegation.Delegations, error)
}

// Pipeline is one end-to-end run over both address families.
type Pipeline struct {
	cfg    *config.Config
	source DelegationSource
}

// NewPipeline builds a pipeline with the registry provider the configuration
// asks for.
func NewPipeline(cfg *config.Config) *Pipeline {
	source := delegation.NewProvider(cfg.CacheFile, cfg.NoCache, cfg.Update, cfg.NoUpdate)
	return NewPipelineWithSource(cfg, source)
}

// NewPipelineWithSource builds a pipeline over an explicit delegation source.
func NewPipelineWithSource(cfg *config.Config, source DelegationSource) *Pipeline {
	return &Pipeline{cfg: cfg, source: source}
}

// Run executes the pipeline. The two families are independent computations
// and run concurrently.
func (p *Pipeline) Run(ctx context.Context) error {
	dels, err := p.source.Delegations(ctx)
	if err != nil {
		return err
	}
	log.Infof("delegations cover %d countries", len(dels.ByCountry))

	// Pure computation from here on, nothing left to cancel.
	var g errgroup.Group
	if !p.cfg.NoV4 {
		g.Go(func() error {
			return p.runFamily(netspace.IPv4, dels, p.cfg.OutputV4)
		})
	}
	if !p.cfg.NoV6 {
		g.Go(func() error {
			return p.runFamily(netspace.IPv6, dels, p.cfg.OutputV6)
		})
	}
	return g.Wait()
}

func (p *Pipeline) runFamily(f netspace.Family, dels *delegation.Delegations, output string) error {
	assignments := Resolve(f, dels, p.cfg.ByCountry)
	log.Debugf("%s: %d delegated blocks resolved to gateways", f, len(assignments))

	routes, err := BuildRoutes(f, assignments, p.cfg.DefaultGateway)
	if err != nil {
		return err
	}
	log.Infof("writing %d %s routes to %s", len(routes), f, output)
	return writeRoutes(output, routes)
}
