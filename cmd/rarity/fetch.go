package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// collectionFile is the document written by fetch; score and the daemon's
// watcher read it back.
type collectionFile struct {
	Name  string        `json:"name,omitempty"`
	Slug  string        `json:"slug,omitempty"`
	Items []rarity.Item `json:"items"`
}

func runFetch(ctx context.Context, args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	baseURL := fs.String("base-url", "", "Metadata base URL or template containing {id}")
	from := fs.Int("from", -1, "First token id of a numeric range")
	to := fs.Int("to", -1, "Last token id of a numeric range")
	ids := fs.String("ids", "", "Comma-separated token ids (instead of -from/-to)")
	outPath := fs.String("out", "", "Output file (default stdout)")
	name := fs.String("name", "", "Collection name")
	slug := fs.String("slug", "", "Collection slug")
	workers := fs.Int("workers", metadata.DefaultWorkers, "Concurrent requests")
	interval := fs.Duration("rate", 100*time.Millisecond, "Minimum gap between requests")
	allowPartial := fs.Bool("allow-partial", false, "Write the tokens that were fetched even if some failed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *baseURL == "" {
		return errors.New("-base-url is required")
	}

	tokenIDs, err := tokenIDsFromFlags(*ids, *from, *to)
	if err != nil {
		return err
	}

	client := metadata.NewClient(metadata.ClientOptions{
		BaseURL:   *baseURL,
		RateLimit: rate.Every(*interval),
		Workers:   *workers,
	})

	started := time.Now()
	items, failures := client.FetchCollection(ctx, tokenIDs)
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "  %v\n", f)
	}
	stats := client.GetStats()
	fmt.Fprintf(os.Stderr, "Fetched %d/%d tokens in %v (%d requests, %d retries)\n",
		len(items), len(tokenIDs), time.Since(started).Round(time.Millisecond), stats.TotalRequests, stats.Retries)

	if len(failures) > 0 && !*allowPartial {
		return fmt.Errorf("%d tokens failed; rerun with -allow-partial to keep the rest", len(failures))
	}
	if len(items) == 0 {
		return errors.New("no tokens fetched")
	}

	w := out
	if *outPath != "" {
		f, createErr := os.Create(*outPath)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(collectionFile{Name: *name, Slug: *slug, Items: items})
}

func tokenIDsFromFlags(ids string, from, to int) ([]string, error) {
	if ids != "" {
		var out []string
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
		if len(out) == 0 {
			return nil, errors.New("-ids is empty")
		}
		return out, nil
	}
	if from < 0 || to < 0 {
		return nil, errors.New("either -ids or -from and -to are required")
	}
	return metadata.TokenRange(from, to)
}
