package transport

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Sternrassler/reqflow/internal/testutil"
	"github.com/Sternrassler/reqflow/pkg/ratelimit"
	"github.com/rs/zerolog"
)

func newTestHTTP(mock *testutil.MockUpstream, limiter *ratelimit.Tracker) *HTTP {
	cfg := DefaultHTTPConfig(mock.URL(), "reqflow-test/1.0")
	cfg.Limiter = limiter
	return NewHTTP(cfg)
}

func TestHTTP_Do_GetJSON(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/users", testutil.NewJSONResponse(`{"name": "ada"}`))

	reply, err := newTestHTTP(mock, nil).Do(context.Background(), Request{
		Method: "get",
		URL:    "/users",
		Params: Params{"id": 7},
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if reply.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", reply.Status, StatusSuccess)
	}
	body, ok := reply.Body.(map[string]any)
	if !ok || body["name"] != "ada" {
		t.Errorf("Body = %#v, want decoded JSON", reply.Body)
	}
	if resp, ok := reply.Handle.(*http.Response); !ok || resp.StatusCode != http.StatusOK {
		t.Errorf("Handle = %#v, want *http.Response 200", reply.Handle)
	}

	last := mock.GetLastRequest()
	if last.URL.Query().Get("id") != "7" {
		t.Errorf("query id = %q, want 7", last.URL.Query().Get("id"))
	}
	if last.Header.Get("User-Agent") != "reqflow-test/1.0" {
		t.Errorf("User-Agent = %q", last.Header.Get("User-Agent"))
	}
	if last.Header.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", last.Header.Get("Accept"))
	}
}

func TestHTTP_Do_PostForm(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	_, err := newTestHTTP(mock, nil).Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    "/orders",
		Params: Params{"qty": 2},
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if got := mock.CountFor(http.MethodPost, "/orders"); got != 1 {
		t.Errorf("POST count = %d, want 1", got)
	}
	form := mock.GetLastForm()
	if len(form["qty"]) != 1 || form["qty"][0] != "2" {
		t.Errorf("form qty = %v, want [2]", form["qty"])
	}
	if mock.GetLastRequest().URL.RawQuery != "" {
		t.Errorf("POST query = %q, want empty", mock.GetLastRequest().URL.RawQuery)
	}
}

func TestHTTP_Do_DataTypes(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/doc", testutil.MockResponse{StatusCode: http.StatusOK, Body: "<p>hi</p>"})

	tr := newTestHTTP(mock, nil)

	reply, err := tr.Do(context.Background(), Request{URL: "/doc", DataType: "html"})
	if err != nil {
		t.Fatalf("Do(html) error = %v", err)
	}
	if reply.Body != "<p>hi</p>" {
		t.Errorf("html Body = %#v", reply.Body)
	}

	reply, err = tr.Do(context.Background(), Request{URL: "/doc", DataType: "bytes"})
	if err != nil {
		t.Fatalf("Do(bytes) error = %v", err)
	}
	if b, ok := reply.Body.([]byte); !ok || string(b) != "<p>hi</p>" {
		t.Errorf("bytes Body = %#v", reply.Body)
	}
}

func TestHTTP_Do_Errors(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/missing", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "not found"}`,
	})
	mock.SetResponse("/boom", testutil.NewServerErrorResponse())
	mock.SetResponse("/slow-down", testutil.NewRateLimitResponse())
	mock.SetResponse("/broken", testutil.NewMalformedJSONResponse())

	tests := []struct {
		name       string
		path       string
		wantStatus string
		wantClass  ErrorClass
		wantCode   int
	}{
		{
			name:       "client error",
			path:       "/missing",
			wantStatus: StatusError,
			wantClass:  ErrorClassClient,
			wantCode:   http.StatusNotFound,
		},
		{
			name:       "server error",
			path:       "/boom",
			wantStatus: StatusError,
			wantClass:  ErrorClassServer,
			wantCode:   http.StatusInternalServerError,
		},
		{
			name:       "rate limited",
			path:       "/slow-down",
			wantStatus: StatusError,
			wantClass:  ErrorClassRateLimit,
			wantCode:   http.StatusTooManyRequests,
		},
		{
			name:       "malformed json",
			path:       "/broken",
			wantStatus: StatusParserError,
			wantClass:  ErrorClassDecode,
			wantCode:   http.StatusOK,
		},
	}

	tr := newTestHTTP(mock, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Do(context.Background(), Request{URL: tt.path})

			var terr *Error
			if !errors.As(err, &terr) {
				t.Fatalf("Do() error = %v, want *Error", err)
			}
			if terr.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", terr.Status, tt.wantStatus)
			}
			if terr.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", terr.Class, tt.wantClass)
			}
			if terr.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", terr.StatusCode, tt.wantCode)
			}
			if terr.Handle == nil {
				t.Error("Handle should carry the HTTP response")
			}
		})
	}
}

func TestHTTP_Do_ErrorPayloadDecoded(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/boom", testutil.NewServerErrorResponse())

	_, err := newTestHTTP(mock, nil).Do(context.Background(), Request{URL: "/boom"})

	terr := AsError(err)
	payload, ok := terr.Payload.(map[string]any)
	if !ok || payload["error"] != "Internal server error" {
		t.Errorf("Payload = %#v, want decoded error body", terr.Payload)
	}
}

func TestHTTP_Do_Timeout(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/slow", testutil.NewSlowJSONResponse(`{}`, 200*time.Millisecond))

	cfg := DefaultHTTPConfig(mock.URL(), "")
	cfg.Timeout = 20 * time.Millisecond

	_, err := NewHTTP(cfg).Do(context.Background(), Request{URL: "/slow"})

	terr := AsError(err)
	if terr == nil || terr.Status != StatusTimeout || terr.Class != ErrorClassNetwork {
		t.Errorf("Do() error = %v, want timeout network error", err)
	}
}

func TestHTTP_Do_NetworkError(t *testing.T) {
	mock := testutil.NewMockUpstream()
	url := mock.URL()
	mock.Close()

	_, err := NewHTTP(DefaultHTTPConfig(url, "")).Do(context.Background(), Request{URL: "/gone"})

	terr := AsError(err)
	if terr == nil || terr.Class != ErrorClassNetwork || terr.Handle != nil {
		t.Errorf("Do() error = %#v, want network error without handle", err)
	}
}

func TestHTTP_Do_RateLimiter(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/slow-down", testutil.NewRateLimitResponse())

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	limiter := ratelimit.NewTracker(ratelimit.NewMemoryStore(), logger)
	tr := newTestHTTP(mock, limiter)

	// The 429 reports 3 errors remaining, which is critical.
	if _, err := tr.Do(context.Background(), Request{URL: "/slow-down"}); err == nil {
		t.Fatal("Do() on 429 should fail")
	}

	before := mock.GetRequestCount()
	_, err := tr.Do(context.Background(), Request{URL: "/anything"})

	terr := AsError(err)
	if terr == nil || terr.Status != StatusBlocked || terr.Class != ErrorClassRateLimit {
		t.Fatalf("Do() error = %v, want blocked", err)
	}
	if mock.GetRequestCount() != before {
		t.Error("blocked request reached the upstream")
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}

	plain := errors.New("dial failed")
	wrapped := AsError(plain)
	if wrapped.Status != StatusError || !errors.Is(wrapped, plain) {
		t.Errorf("AsError(plain) = %#v", wrapped)
	}

	orig := &Error{Status: StatusTimeout}
	if AsError(orig) != orig {
		t.Error("AsError should return an *Error unchanged")
	}
}

func TestFunc(t *testing.T) {
	var tr Transport = Func(func(ctx context.Context, req Request) (*Reply, error) {
		return &Reply{Body: req.URL, Status: StatusSuccess}, nil
	})

	reply, err := tr.Do(context.Background(), Request{URL: "/x"})
	if err != nil || reply.Body != "/x" {
		t.Errorf("Func.Do() = (%v, %v)", reply, err)
	}
}
