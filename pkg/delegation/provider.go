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
	"context"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// cacheMaxAge is how long a cache file stays fresh before the registries are
// contacted again.
const cacheMaxAge = 24 * time.Hour

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider hands out delegation data, downloading and caching as the cache
// policy dictates.
type Provider struct {
	cacheFile string
	noCache   bool
	update    bool
	noUpdate  bool

	clock clock.Clock
	fetch func(ctx context.Context) (*Delegations, error)
}

// NewProvider builds a provider over the given cache policy. With noCache the
// registries are always contacted and the file is neither read nor written;
// update forces a refresh even when the cache is fresh; noUpdate forbids
// network access entirely.
func NewProvider(cacheFile string, noCache, update, noUpdate bool) *Provider {
	return &Provider{
		cacheFile: cacheFile,
		noCache:   noCache,
		update:    update,
		noUpdate:  noUpdate,
		clock:     clock.New(),
		fetch:     FetchAll,
	}
}

// Delegations returns the registry data, from cache or from the network.
func (p *Provider) Delegations(ctx context.Context) (*Delegations, error) {
	if p.noCache {
		return p.fetch(ctx)
	}
	refresh, err := p.needRefresh()
	if err != nil {
		return nil, err
	}
	if !refresh {
		log.Infof("loading delegations from cache %s", p.cacheFile)
		return p.load()
	}
	dels, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("caching delegations in %s", p.cacheFile)
	if err := p.save(dels); err != nil {
		return nil, err
	}
	return dels, nil
}

func (p *Provider) needRefresh() (bool, error) {
	if p.update {
		return true, nil
	}
	st, err := os.Stat(p.cacheFile)
	if err != nil {
		if p.noUpdate {
			return false, errors.Errorf("cache file %s is missing and updating is disabled", p.cacheFile)
		}
		return true, nil
	}
	if p.noUpdate {
		return false, nil
	}
	return p.clock.Now().Sub(st.ModTime()) > cacheMaxAge, nil
}

func (p *Provider) load() (*Delegations, error) {
	f, err := os.Open(p.cacheFile)
	if err != nil {
		return nil, errors.Wrap(err, "opening delegations cache")
	}
	defer f.Close()
	var dels Delegations
	if err := jsonAPI.NewDecoder(f).Decode(&dels); err != nil {
		return nil, errors.Wrapf(err, "decoding delegations cache %s", p.cacheFile)
	}
	return &dels, nil
}

func (p *Provider) save(dels *Delegations) error {
	f, err := os.Create(p.cacheFile)
	if err != nil {
		return errors.Wrap(err, "creating delegations cache")
	}
	defer f.Close()
	if err := jsonAPI.NewEncoder(f).Encode(dels); err != nil {
		return errors.Wrapf(err, "encoding delegations cache %s", p.cacheFile)
	}
	return nil
}
