package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/Sternrassler/reqflow/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for HTTP transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqflow_transport_requests_total",
		Help: "Total upstream requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqflow_transport_request_duration_seconds",
		Help:    "Upstream request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqflow_transport_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// HTTPConfig holds the HTTP transport configuration.
type HTTPConfig struct {
	// BaseURL is prefixed to request URLs that are not absolute.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single request (default: 30s).
	Timeout time.Duration

	// Limiter gates requests on the upstream error budget. Optional.
	Limiter *ratelimit.Tracker

	// Client replaces the default *http.Client. Optional.
	Client *http.Client
}

// DefaultHTTPConfig returns a configuration for baseURL.
func DefaultHTTPConfig(baseURL, userAgent string) HTTPConfig {
	return HTTPConfig{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// HTTP is a Transport backed by net/http.
type HTTP struct {
	client  *http.Client
	config  HTTPConfig
	limiter *ratelimit.Tracker
	logger  zerolog.Logger
}

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTP{
		client:  httpClient,
		config:  cfg,
		limiter: cfg.Limiter,
		logger:  logging.NewLogger(logging.ComponentTransport),
	}
}

// Do implements Transport. The returned handle is the *http.Response whose
// body has already been read and closed.
func (t *HTTP) Do(ctx context.Context, req Request) (*Reply, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	dataType := req.DataType
	if dataType == "" {
		dataType = DefaultDataType
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	if t.limiter != nil {
		allowed, err := t.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			return nil, t.fail(method, &Error{
				Status:  StatusError,
				Class:   ErrorClassRateLimit,
				Payload: "rate limit check failed",
				Err:     err,
			})
		}
		if !allowed {
			t.logger.Warn().Str("url", req.URL).Msg("Request blocked by rate limiter")
			return nil, t.fail(method, &Error{
				Status:  StatusBlocked,
				Class:   ErrorClassRateLimit,
				Payload: "request blocked: error budget critical",
			})
		}
	}

	httpReq, err := t.newRequest(ctx, method, req, dataType)
	if err != nil {
		return nil, t.fail(method, &Error{
			Status:  StatusError,
			Class:   ErrorClassClient,
			Payload: err.Error(),
			Err:     err,
		})
	}

	t.logger.Debug().
		Str("method", method).
		Str("url", httpReq.URL.String()).
		Msg("Executing request")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		status := StatusError
		if isTimeout(err) {
			status = StatusTimeout
		}
		t.logger.Error().Err(err).Str("url", req.URL).Msg("HTTP request failed")
		return nil, t.fail(method, &Error{
			Status:  status,
			Class:   ErrorClassNetwork,
			Payload: err.Error(),
			Err:     err,
		})
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil, t.fail(method, &Error{
			Status:     StatusError,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Handle:     resp,
			Payload:    err.Error(),
			Err:        fmt.Errorf("read response body: %w", err),
		})
	}

	if t.limiter != nil {
		if err := t.limiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		requestsTotal.WithLabelValues(method, StatusNotModified).Inc()
		return &Reply{Status: StatusNotModified, Handle: resp}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		t.logger.Warn().
			Str("url", req.URL).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")

		payload, decodeErr := decode(body, dataType)
		if decodeErr != nil {
			payload = string(body)
		}
		return nil, t.fail(method, &Error{
			Status:     StatusError,
			StatusCode: resp.StatusCode,
			Class:      class,
			Handle:     resp,
			Payload:    payload,
		})
	}

	decoded, err := decode(body, dataType)
	if err != nil {
		return nil, t.fail(method, &Error{
			Status:     StatusParserError,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassDecode,
			Handle:     resp,
			Payload:    string(body),
			Err:        err,
		})
	}

	requestsTotal.WithLabelValues(method, StatusSuccess).Inc()
	return &Reply{Body: decoded, Status: StatusSuccess, Handle: resp}, nil
}

func (t *HTTP) fail(method string, err *Error) *Error {
	requestsTotal.WithLabelValues(method, err.Status).Inc()
	errorsTotal.WithLabelValues(string(err.Class)).Inc()
	return err
}

// newRequest builds the *http.Request. Params go into the query for
// GET, HEAD and DELETE and into a form body otherwise.
func (t *HTTP) newRequest(ctx context.Context, method string, req Request, dataType string) (*http.Request, error) {
	target := req.URL
	if t.config.BaseURL != "" && !strings.Contains(target, "://") {
		target = strings.TrimRight(t.config.BaseURL, "/") + "/" + strings.TrimLeft(target, "/")
	}

	var body io.Reader
	encoded := req.Params.Encode()
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		target = AppendQuery(target, encoded)
	default:
		body = strings.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if t.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}
	httpReq.Header.Set("Accept", acceptHeader(dataType))
	return httpReq, nil
}

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests || code == 420:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func acceptHeader(dataType string) string {
	switch strings.ToLower(dataType) {
	case "json":
		return "application/json"
	case "xml":
		return "application/xml, text/xml"
	case "html":
		return "text/html"
	case "text":
		return "text/plain"
	default:
		return "*/*"
	}
}

// decode converts a response body according to dataType.
func decode(body []byte, dataType string) (any, error) {
	switch strings.ToLower(dataType) {
	case "json":
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return v, nil
	case "text", "html", "xml":
		return string(body), nil
	case "bytes", "binary":
		return body, nil
	default:
		return nil, fmt.Errorf("unsupported data type %s", strconv.Quote(dataType))
	}
}
