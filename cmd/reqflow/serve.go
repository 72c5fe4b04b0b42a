package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	var (
		upstream string
		addr     string
		redisURL string
		ttl      string
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the caching proxy",
		Long: `Run an HTTP proxy that forwards /api/* to the upstream.

GET requests are cached (default TTL from --ttl, per request via ?_ttl=).
Concurrent identical requests share one upstream call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			flags := cmd.Flags()
			if flags.Changed("upstream") {
				s.Upstream = upstream
			}
			if flags.Changed("addr") {
				s.Addr = addr
			}
			if flags.Changed("redis") {
				s.Redis = redisURL
			}
			if flags.Changed("ttl") {
				s.TTL = ttl
			}
			if flags.Changed("debug") {
				s.Debug = debug
			}
			if s.Upstream == "" {
				return errors.New("upstream is required (--upstream or REQFLOW_UPSTREAM)")
			}
			return serve(cmd.Context(), s)
		},
	}

	cmd.Flags().StringVar(&upstream, "upstream", "", "upstream base URL")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&redisURL, "redis", "", "Redis address for the shared error budget")
	cmd.Flags().StringVar(&ttl, "ttl", "", "default cache TTL, milliseconds or duration (default 5s)")
	cmd.Flags().BoolVar(&debug, "debug", false, "fail on ambiguous parser rules")

	return cmd
}

func serve(ctx context.Context, s settings) error {
	logger := logging.NewLogger(logging.ComponentServer)

	rt, err := newRuntime(ctx, s)
	if err != nil {
		return err
	}
	defer rt.Close()

	timeout, err := s.timeout()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           newServer(rt.client, timeout).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", s.Addr).
			Str("upstream", s.Upstream).
			Str("user_agent", s.UserAgent).
			Msg("Starting proxy server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
