package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/reqflow/pkg/client"
	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/Sternrassler/reqflow/pkg/metrics"
	"github.com/Sternrassler/reqflow/pkg/transport"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reserved query/form parameters that control the proxy instead of being
// forwarded upstream.
const (
	ttlParam   = "_ttl"
	cacheParam = "_cache"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// payload is the JSON envelope of every proxied reply.
type payload struct {
	Status string `json:"status"`
	Body   any    `json:"body,omitempty"`
	Error  any    `json:"error,omitempty"`
}

type server struct {
	client  *client.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func newServer(c *client.Client, timeout time.Duration) *server {
	return &server{
		client:  c,
		timeout: timeout,
		logger:  logging.NewLogger(logging.ComponentServer),
	}
}

// routes returns the proxy router. Requests under /api/ are forwarded to the
// upstream with the /api prefix removed.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/api/*", s.proxy(http.MethodGet))
	r.Post("/api/*", s.proxy(http.MethodPost))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// requestID propagates an incoming X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *server) proxy(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, payload{Status: transport.StatusError, Error: err.Error()})
			return
		}

		path := "/" + chi.URLParam(r, "*")
		params, opts := splitForm(r.Form)

		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		logger := s.logger.With().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", method).
			Str("path", path).
			Logger()

		resp, err := s.client.Do(ctx, method, path, params, opts...).Await(ctx)
		if err != nil {
			code, body := errorReply(err)
			logger.Warn().Err(err).Int("status", code).Msg("Proxy request failed")
			writeJSON(w, code, body)
			return
		}

		if resp.IsParseError() {
			logger.Warn().Err(resp.Err()).Msg("Upstream payload rejected by parser")
			writeJSON(w, http.StatusBadGateway, payload{Status: resp.Status, Error: errorText(resp.Err())})
			return
		}

		logger.Info().Str("status", resp.Status).Msg("Proxied request")
		writeJSON(w, http.StatusOK, payload{Status: resp.Status, Body: resp.Body})
	}
}

// splitForm separates the forwarded params from the proxy controls.
// A "_ttl" that is not a positive duration disables caching.
func splitForm(form map[string][]string) (transport.Params, []client.RequestOption) {
	params := transport.Params{}
	var opts []client.RequestOption

	for key, values := range form {
		switch key {
		case ttlParam:
			if ttl, ok := client.ParseTTL(firstValue(values)); ok {
				opts = append(opts, client.WithTTL(ttl))
			} else {
				opts = append(opts, client.WithTTL(0))
			}
		case cacheParam:
			if v := firstValue(values); v == "1" || v == "true" {
				opts = append(opts, client.WithCache())
			}
		default:
			if len(values) == 1 {
				params[key] = values[0]
			} else {
				params[key] = values
			}
		}
	}
	return params, opts
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// errorReply maps a rejected request to an HTTP status and envelope.
func errorReply(err error) (int, payload) {
	var terr *transport.Error
	switch {
	case errors.As(err, &terr):
		return http.StatusBadGateway, payload{Status: terr.Status, Error: terr.Payload}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, payload{Status: transport.StatusTimeout, Error: err.Error()}
	default:
		return http.StatusInternalServerError, payload{Status: transport.StatusError, Error: err.Error()}
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
