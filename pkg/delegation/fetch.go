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
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	fetchTimeout  = 2 * time.Minute
	fetchAttempts = 3
	retryBackoff  = 10 * time.Second
)

// FetchAll downloads and parses the statistics of all five registries
// concurrently. Registry data is independent per source, so the per-country
// grouping is stable regardless of which download finishes first: records
// are merged in fixed source order.
func FetchAll(ctx context.Context) (*Delegations, error) {
	client := &http.Client{Timeout: fetchTimeout}
	perSource := make([][]Record, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			records, err := fetchOne(ctx, client, src)
			if err != nil {
				return err
			}
			perSource[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Record
	for _, records := range perSource {
		all = append(all, records...)
	}
	return groupByCountry(all), nil
}

func fetchOne(ctx context.Context, client *http.Client, src source) ([]Record, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			log.Warnf("retrying %s download (attempt %d/%d): %v", src.name, attempt, fetchAttempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt-1)):
			}
		}
		records, err := download(ctx, client, src)
		if err == nil {
			log.Infof("downloaded %d %s delegations", len(records), src.name)
			return records, nil
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "downloading %s delegations", src.name)
}

func download(ctx context.Context, client *http.Client, src source) ([]Record, error) {
	log.Infof("downloading delegations from %s", src.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s from %s", resp.Status, src.url)
	}
	return parseDelegated(src.name, resp.Body)
}
