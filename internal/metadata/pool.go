package metadata

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// FetchCollection fetches tokenIDs with a bounded pool of workers.
//
// Successfully fetched items are returned in input order. Per-token failures
// are collected rather than aborting the batch; a cancelled context stops
// dispatching and is reported as a failure for every token not yet fetched.
func (c *Client) FetchCollection(ctx context.Context, tokenIDs []string) ([]rarity.Item, []FetchError) {
	type result struct {
		item rarity.Item
		err  error
		done bool
	}

	results := make([]result, len(tokenIDs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := min(c.opts.Workers, len(tokenIDs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item, err := c.FetchToken(ctx, tokenIDs[i])
				results[i] = result{item: item, err: err, done: true}
			}
		}()
	}

dispatch:
	for i := range tokenIDs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	items := make([]rarity.Item, 0, len(tokenIDs))
	var failures []FetchError
	for i, r := range results {
		err := r.err
		if !r.done {
			err = ctx.Err()
		}
		if err != nil {
			failures = append(failures, FetchError{TokenID: tokenIDs[i], Err: err, Message: err.Error()})
			continue
		}
		items = append(items, r.item)
	}

	if len(failures) > 0 {
		log.Printf("[MetadataClient] Fetched %d/%d tokens, %d failed", len(items), len(tokenIDs), len(failures))
	}
	return items, failures
}

// FetchFrom fetches tokenIDs from baseURL, sharing this client's rate limit.
func (c *Client) FetchFrom(ctx context.Context, baseURL string, tokenIDs []string) ([]rarity.Item, []FetchError) {
	return c.WithBaseURL(baseURL).FetchCollection(ctx, tokenIDs)
}

// MaxTokenRange caps the number of ids TokenRange will generate.
const MaxTokenRange = 100000

// TokenRange returns the decimal token ids from..to inclusive.
func TokenRange(from, to int) ([]string, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid token range %d..%d", from, to)
	}
	if to-from >= MaxTokenRange {
		return nil, fmt.Errorf("token range %d..%d exceeds %d ids", from, to, MaxTokenRange)
	}

	ids := make([]string, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, strconv.Itoa(id))
	}
	return ids, nil
}
