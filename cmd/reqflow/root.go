package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/reqflow/pkg/client"
	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/Sternrassler/reqflow/pkg/ratelimit"
	"github.com/Sternrassler/reqflow/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "reqflow.toml"

// app holds state shared by all commands.
type app struct {
	configPath string
	logLevel   string
	pretty     bool
	settings   settings
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "reqflow",
		Short:         "reqflow deduplicates, caches and parses HTTP requests",
		Long:          `reqflow runs requests through a deduplicating task queue, a TTL cache and a parser registry. Use "serve" for a caching proxy or "get" for a single request.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML config file (default ./"+defaultConfigFile+" if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "human-readable log output")

	root.AddCommand(a.serveCommand())
	root.AddCommand(a.getCommand())

	return root
}

// init resolves settings and configures logging before any command runs.
func (a *app) init(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" && fileExists(defaultConfigFile) {
		path = defaultConfigFile
	}

	s, err := loadSettings(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.LogLevel = a.logLevel
	}
	if flags.Changed("pretty") {
		s.Pretty = a.pretty
	}

	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = s.Pretty
	cfg.Output = cmd.ErrOrStderr()
	logging.Setup(cfg)

	a.settings = s
	return nil
}

// runtime is a client wired to the upstream together with what must be
// released when the command ends.
type runtime struct {
	client  *client.Client
	limiter *ratelimit.Tracker
	redis   *redis.Client
}

func (r *runtime) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// newRuntime builds the transport, error budget tracker and client from s.
// The budget is kept in Redis when s.Redis is set, in memory otherwise.
func newRuntime(ctx context.Context, s settings) (*runtime, error) {
	ttl, err := s.ttl()
	if err != nil {
		return nil, err
	}
	timeout, err := s.timeout()
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	logger := logging.NewLogger(logging.ComponentRateLimit)

	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if s.Redis != "" {
		rt.redis, err = newRedisClient(s.Redis)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rt.redis.Ping(pingCtx).Err(); err != nil {
			rt.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", s.Redis, err)
		}
		logger.Info().Str("redis", s.Redis).Msg("Connected to Redis")
		store = ratelimit.NewRedisStore(rt.redis, "")
	}
	rt.limiter = ratelimit.NewTracker(store, logger)

	httpCfg := transport.DefaultHTTPConfig(s.Upstream, s.UserAgent)
	httpCfg.Timeout = timeout
	httpCfg.Limiter = rt.limiter

	cfg := client.DefaultConfig(transport.NewHTTP(httpCfg))
	cfg.DefaultTTL = ttl
	cfg.Debug = s.Debug

	rt.client, err = client.New(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if err := s.register(rt.client); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// newRedisClient accepts either a redis:// URL or a host:port address.
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}
