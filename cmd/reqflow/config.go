package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Sternrassler/reqflow/pkg/client"
	"github.com/Sternrassler/reqflow/pkg/parser"
)

// settings is the resolved configuration. Sources are applied in order:
// defaults, config file, environment, flags.
type settings struct {
	Upstream  string       `toml:"upstream"`
	Addr      string       `toml:"addr"`
	Redis     string       `toml:"redis"`
	UserAgent string       `toml:"user_agent"`
	TTL       string       `toml:"ttl"`
	Timeout   string       `toml:"timeout"`
	Debug     bool         `toml:"debug"`
	LogLevel  string       `toml:"log_level"`
	Pretty    bool         `toml:"pretty"`
	Parsers   []parserRule `toml:"parser"`
}

// parserRule is a [[parser]] table. Pick names the top-level field of a JSON
// object that becomes the response body.
type parserRule struct {
	Pattern string `toml:"pattern"`
	Method  string `toml:"method"`
	Pick    string `toml:"pick"`
}

func defaultSettings() settings {
	return settings{
		Addr:      ":8080",
		UserAgent: "reqflow/" + version,
		TTL:       "5s",
		Timeout:   "30s",
		LogLevel:  "info",
	}
}

// loadSettings reads path (optional) over the defaults and applies the
// environment.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()

	if path != "" {
		if _, err := toml.DecodeFile(path, &s); err != nil {
			return s, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s.Upstream = getEnv("REQFLOW_UPSTREAM", s.Upstream)
	s.Addr = getEnv("REQFLOW_ADDR", s.Addr)
	s.Redis = getEnv("REDIS_URL", s.Redis)
	s.UserAgent = getEnv("USER_AGENT", s.UserAgent)

	return s, nil
}

func (s settings) ttl() (time.Duration, error) {
	ttl, ok := client.ParseTTL(s.TTL)
	if !ok {
		return 0, fmt.Errorf("invalid ttl %q: want milliseconds or a duration like 5s", s.TTL)
	}
	return ttl, nil
}

func (s settings) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q", s.Timeout)
	}
	return d, nil
}

var errNotAnObject = errors.New("payload is not a JSON object")

// register adds the configured rules to c in file order.
func (s settings) register(c *client.Client) error {
	for i, rule := range s.Parsers {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("parser %d: %w", i, err)
		}
		method := rule.Method
		if method == "" {
			method = "GET"
		}
		fn := parser.Identity
		if rule.Pick != "" {
			fn = pick(rule.Pick)
		}
		c.RegisterParser(pattern, method, fn)
	}
	return nil
}

func pick(field string) parser.Transform {
	return func(raw any) (any, error) {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, errNotAnObject
		}
		v, ok := obj[field]
		if !ok {
			return nil, fmt.Errorf("field %q missing", field)
		}
		return v, nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
