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
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/equalitie/lessroutes/pkg/api"
	"github.com/equalitie/lessroutes/pkg/netspace"
	"github.com/equalitie/lessroutes/pkg/trie"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// BuildRoutes runs the core computation for one family: assignments go into
// the trie (default gateway first, so specific blocks override it) and the
// aggregated result comes out as routes in ascending address order.
func BuildRoutes(f netspace.Family, assignments []Assignment, defaultGateway string) ([]api.Route, error) {
	tr := trie.New(f)
	if defaultGateway != "" {
		if err := tr.InsertDefault(defaultGateway); err != nil {
			return nil, err
		}
	}
	for _, a := range assignments {
		if err := tr.Insert(a.Block, a.Gateway); err != nil {
			return nil, err
		}
	}

	entries := tr.Aggregate()
	routes := make([]api.Route, 0, len(entries))
	for _, e := range entries {
		routes = append(routes, api.Route{
			Prefix:  f.AddrText(e.Block.Base),
			Mask:    f.MaskText(e.Block.Length),
			Length:  e.Block.Length,
			Gateway: e.Gateway,
		})
	}
	return routes, nil
}

// writeRoutes emits routes as a pretty-printed JSON array.
func writeRoutes(path string, routes []api.Route) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating routes file")
	}
	defer f.Close()
	enc := jsonAPI.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(routes); err != nil {
		return errors.Wrapf(err, "encoding routes to %s", path)
	}
	return nil
}
