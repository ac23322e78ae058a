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
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

type fetchCounter struct {
	calls int
	dels  *Delegations
}

func (fc *fetchCounter) fetch(_ context.Context) (*Delegations, error) {
	fc.calls++
	return fc.dels, nil
}

func testProvider(t *testing.T, noCache, update, noUpdate bool) (*Provider, *fetchCounter) {
	t.Helper()
	fc := &fetchCounter{dels: &Delegations{ByCountry: map[string][]string{
		"JP": {"133.0.0.0/19"},
	}}}
	p := NewProvider(filepath.Join(t.TempDir(), "delegations.json"), noCache, update, noUpdate)
	p.fetch = fc.fetch
	return p, fc
}

func TestProviderFetchesAndCaches(t *testing.T) {
	p, fc := testProvider(t, false, false, false)
	ctx := context.Background()

	dels, err := p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, fc.dels.ByCountry, dels.ByCountry)
	require.Equal(t, 1, fc.calls)
	require.FileExists(t, p.cacheFile)

	// Second call within the freshness window reads the file back.
	dels, err = p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, fc.dels.ByCountry, dels.ByCountry)
	require.Equal(t, 1, fc.calls)
}

func TestProviderRefreshesStaleCache(t *testing.T) {
	p, fc := testProvider(t, false, false, false)
	mock := clock.NewMock()
	mock.Set(time.Now())
	p.clock = mock
	ctx := context.Background()

	_, err := p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fc.calls)

	mock.Add(23 * time.Hour)
	_, err = p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fc.calls)

	mock.Add(2 * time.Hour)
	_, err = p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, fc.calls)
}

func TestProviderUpdateForcesRefresh(t *testing.T) {
	p, fc := testProvider(t, false, true, false)
	ctx := context.Background()

	_, err := p.Delegations(ctx)
	require.NoError(t, err)
	_, err = p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, fc.calls)
}

func TestProviderNoUpdate(t *testing.T) {
	// Without a cache file, forbidding updates is fatal.
	p, fc := testProvider(t, false, false, true)
	_, err := p.Delegations(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, fc.calls)

	// With a cache file, it is always used no matter how old.
	p2, fc2 := testProvider(t, false, false, false)
	_, err = p2.Delegations(context.Background())
	require.NoError(t, err)
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(p2.cacheFile, old, old))

	p2.noUpdate = true
	_, err = p2.Delegations(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fc2.calls)
}

func TestProviderNoCache(t *testing.T) {
	p, fc := testProvider(t, true, false, false)
	ctx := context.Background()

	_, err := p.Delegations(ctx)
	require.NoError(t, err)
	_, err = p.Delegations(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, fc.calls)
	require.NoFileExists(t, p.cacheFile)
}

func TestGroupByCountryKeepsSourceOrder(t *testing.T) {
	dels := groupByCountry([]Record{
		{Country: "JP", Prefix: mustPrefix(t, "133.0.0.0/19")},
		{Country: "AU", Prefix: mustPrefix(t, "1.0.0.0/20")},
		{Country: "JP", Prefix: mustPrefix(t, "2001:200::/35")},
	})
	require.Equal(t, map[string][]string{
		"JP": {"133.0.0.0/19", "2001:200::/35"},
		"AU": {"1.0.0.0/20"},
	}, dels.ByCountry)
}
