package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/reqflow/internal/testutil"
	"github.com/Sternrassler/reqflow/pkg/client"
	"github.com/Sternrassler/reqflow/pkg/transport"
)

// fakeFetcher serves total pages and fails the pages listed in fail.
type fakeFetcher struct {
	total int
	fail  map[int]bool

	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string, params transport.Params, page int) (*client.Response, int, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.fail[page] {
		return nil, 0, fmt.Errorf("boom on %d", page)
	}
	return &client.Response{Status: transport.StatusSuccess, Body: page}, f.total, nil
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(&fakeFetcher{}, Config{})

	if bf.config.MaxConcurrency != 10 {
		t.Errorf("MaxConcurrency = %d, want 10", bf.config.MaxConcurrency)
	}
	if bf.config.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", bf.config.Timeout)
	}
}

func TestFetchAllPages(t *testing.T) {
	f := &fakeFetcher{total: 12}
	bf := NewBatchFetcher(f, Config{MaxConcurrency: 3, Timeout: time.Second})

	pages, err := bf.FetchAllPages(context.Background(), "/orders", nil)
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}

	if len(pages) != 12 {
		t.Fatalf("pages = %d, want 12", len(pages))
	}
	for n, resp := range pages {
		if resp.Body != n {
			t.Errorf("page %d body = %v", n, resp.Body)
		}
	}
	if f.calls.Load() != 12 {
		t.Errorf("fetch calls = %d, want 12", f.calls.Load())
	}
	if f.peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", f.peak)
	}
}

func TestFetchAllPages_SinglePage(t *testing.T) {
	f := &fakeFetcher{total: 1}

	pages, err := NewBatchFetcher(f, DefaultConfig()).FetchAllPages(context.Background(), "/orders", nil)
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}
	if len(pages) != 1 || f.calls.Load() != 1 {
		t.Errorf("pages = %d, calls = %d, want 1/1", len(pages), f.calls.Load())
	}
}

func TestFetchAllPages_FirstPageFails(t *testing.T) {
	f := &fakeFetcher{total: 5, fail: map[int]bool{1: true}}

	pages, err := NewBatchFetcher(f, DefaultConfig()).FetchAllPages(context.Background(), "/orders", nil)
	if err == nil {
		t.Fatal("FetchAllPages() should fail when page 1 fails")
	}
	if pages != nil {
		t.Errorf("pages = %v, want nil", pages)
	}
}

func TestFetchAllPages_PartialResults(t *testing.T) {
	f := &fakeFetcher{total: 6, fail: map[int]bool{3: true, 5: true}}

	pages, err := NewBatchFetcher(f, DefaultConfig()).FetchAllPages(context.Background(), "/orders", nil)
	if err == nil {
		t.Fatal("FetchAllPages() should report failed pages")
	}

	if len(pages) != 4 {
		t.Errorf("pages = %d, want 4", len(pages))
	}
	var perr *PageError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *PageError", err)
	}
	if perr.Page != 3 && perr.Page != 5 {
		t.Errorf("failed page = %d, want 3 or 5", perr.Page)
	}
}

func TestClientFetcher(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetHandler("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(DefaultPagesHeader, "3")
		fmt.Fprintf(w, `{"page": %s, "region": %q}`, r.URL.Query().Get("page"), r.URL.Query().Get("region"))
	})

	c, err := client.New(client.DefaultConfig(transport.NewHTTP(transport.DefaultHTTPConfig(mock.URL(), "test"))))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	bf := NewBatchFetcher(NewClientFetcher(c), DefaultConfig())
	pages, err := bf.FetchAllPages(context.Background(), "/orders", transport.Params{"region": "forge"})
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	for n, resp := range pages {
		body := resp.Body.(map[string]any)
		if body["page"] != float64(n) || body["region"] != "forge" {
			t.Errorf("page %d body = %v", n, body)
		}
	}
	if got := mock.CountFor(http.MethodGet, "/orders"); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}

	// All pages are cached now.
	if _, err := bf.FetchAllPages(context.Background(), "/orders", transport.Params{"region": "forge"}); err != nil {
		t.Fatalf("second FetchAllPages() error = %v", err)
	}
	if got := mock.CountFor(http.MethodGet, "/orders"); got != 3 {
		t.Errorf("upstream calls after refetch = %d, want 3", got)
	}
}

func TestClientFetcher_MissingHeader(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	c, err := client.New(client.DefaultConfig(transport.NewHTTP(transport.DefaultHTTPConfig(mock.URL(), "test"))))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	_, total, err := NewClientFetcher(c).FetchPage(context.Background(), "/plain", nil, 1)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}
