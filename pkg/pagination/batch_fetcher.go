package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/reqflow/pkg/client"
	"github.com/Sternrassler/reqflow/pkg/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Defaults for ClientFetcher.
const (
	DefaultPagesHeader = "X-Pages"
	DefaultPageParam   = "page"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page and reports the total page count.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, params transport.Params, page int) (resp *client.Response, totalPages int, err error)
}

// ClientFetcher fetches pages with GET requests through a client. The page
// number is sent as PageParam and the total is read from PagesHeader of the
// HTTP response handle.
type ClientFetcher struct {
	Client      *client.Client
	PagesHeader string
	PageParam   string
}

// NewClientFetcher returns a ClientFetcher with the default header and param.
func NewClientFetcher(c *client.Client) *ClientFetcher {
	return &ClientFetcher{
		Client:      c,
		PagesHeader: DefaultPagesHeader,
		PageParam:   DefaultPageParam,
	}
}

// FetchPage implements PageFetcher. A missing or invalid page header counts
// as a single page.
func (f *ClientFetcher) FetchPage(ctx context.Context, url string, params transport.Params, page int) (*client.Response, int, error) {
	p := make(transport.Params, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p[f.PageParam] = page

	resp, err := f.Client.Get(ctx, url, p).Await(ctx)
	if err != nil {
		return nil, 0, err
	}
	if resp.IsParseError() {
		return nil, 0, fmt.Errorf("page %d: %w", page, resp.Err())
	}

	total := 1
	if httpResp, ok := resp.Handle.(*http.Response); ok {
		if n, err := strconv.Atoi(httpResp.Header.Get(f.PagesHeader)); err == nil && n > 0 {
			total = n
		}
	}
	return resp, total, nil
}

// PageError is the failure of a single page.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAllPages fetches all pages of url in parallel.
// Returns map of pageNumber -> response for successful pages
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, url string, params transport.Params) (map[int]*client.Response, error) {
	start := time.Now()

	firstCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	first, totalPages, err := bf.fetcher.FetchPage(firstCtx, url, params, 1)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	results := map[int]*client.Response{1: first}
	if totalPages <= 1 {
		log.Debug().
			Str("url", url).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return results, nil
	}

	log.Info().
		Str("url", url).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			pageCtx, cancel := context.WithTimeout(gctx, bf.config.Timeout)
			resp, _, err := bf.fetcher.FetchPage(pageCtx, url, params, page)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Int("page", page).Msg("Page fetch failed")
				failures = append(failures, &PageError{Page: page, Err: err})
				return nil
			}
			results[page] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("fetch cancelled (partial data: %d/%d pages): %w", len(results), totalPages, err)
	}

	log.Info().
		Str("url", url).
		Int("pages", len(results)).
		Int("total", totalPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	if len(failures) > 0 {
		return results, fmt.Errorf("partial data: %d/%d pages: %w", len(results), totalPages, errors.Join(failures...))
	}
	return results, nil
}
