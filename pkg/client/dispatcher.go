package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/Sternrassler/reqflow/pkg/parser"
	"github.com/Sternrassler/reqflow/pkg/queue"
	"github.com/Sternrassler/reqflow/pkg/transport"
	"github.com/rs/zerolog"
)

// Dispatcher turns a request into a deduplicated task that calls the
// transport and routes the raw payload through the parser registry.
type Dispatcher struct {
	transport transport.Transport
	parsers   *parser.Registry
	queue     *queue.Queue[*Response]
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher. Queue options configure the scheduler
// and logger of its task queue.
func NewDispatcher(t transport.Transport, parsers *parser.Registry, opts ...queue.Option) *Dispatcher {
	if parsers == nil {
		parsers = parser.NewRegistry()
	}
	return &Dispatcher{
		transport: t,
		parsers:   parsers,
		queue:     queue.New[*Response](opts...),
		logger:    logging.NewLogger(logging.ComponentDispatcher),
	}
}

// Parsers returns the registry consulted for every dispatch.
func (d *Dispatcher) Parsers() *parser.Registry {
	return d.parsers
}

// Queue returns the underlying task queue.
func (d *Dispatcher) Queue() *queue.Queue[*Response] {
	return d.queue
}

// Dispatch submits the request under Key(url, params). Concurrent dispatches
// with the same key share one transport call and one parse pass, whatever
// their method. An ambiguous parser match fails the returned future without
// calling the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, method, url string, params transport.Params, dataType string) *queue.Future[*Response] {
	method = normalizeMethod(method)
	if dataType == "" {
		dataType = transport.DefaultDataType
	}

	transform, err := d.parsers.Resolve(url, method)
	if err != nil {
		d.logger.Error().Err(err).Str("url", url).Str("method", method).Msg("Parser resolution failed")
		return queue.Failed[*Response](err)
	}

	req := transport.Request{
		Method:   method,
		URL:      url,
		Params:   params,
		DataType: dataType,
	}

	return d.queue.Run(ctx, Key(url, params), func(ctx context.Context) (*Response, error) {
		return d.perform(ctx, req, transform)
	})
}

func (d *Dispatcher) perform(ctx context.Context, req transport.Request, transform parser.Transform) (*Response, error) {
	reply, err := d.transport.Do(ctx, req)
	if err != nil {
		terr := transport.AsError(err)
		d.logger.Warn().
			Str("url", req.URL).
			Str("method", req.Method).
			Str("status", terr.Status).
			Str("error_class", string(terr.Class)).
			Msg("Transport error")
		return nil, terr
	}
	if reply == nil {
		reply = &transport.Reply{Status: transport.StatusSuccess}
	}

	parsed, err := transform(reply.Body)
	if err != nil {
		d.logger.Warn().Err(err).Str("url", req.URL).Msg("Transform failed")
		return &Response{Status: StatusParseError, Handle: reply.Handle, Body: err}, nil
	}

	return &Response{Status: reply.Status, Handle: reply.Handle, Body: parsed}, nil
}

func normalizeMethod(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(method)
}
