// Package parser routes raw response payloads to registered transforms.
//
// Rules are matched in registration order against the request URL and HTTP
// method. The first match wins; with no match the payload passes through
// unchanged. In debug mode more than one match is reported as an error so
// ambiguous routing is caught during development.
package parser

import (
	"regexp"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var parserResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reqflow_parser_resolutions_total",
	Help: "Total parser resolutions by result",
}, []string{"result"}) // "matched", "identity", "ambiguous"

// Transform normalizes a raw payload. A non-nil error marks the payload as
// malformed.
type Transform func(raw any) (any, error)

// Identity returns raw unchanged.
func Identity(raw any) (any, error) {
	return raw, nil
}

// Rule binds a transform to a URL pattern and an HTTP method.
type Rule struct {
	Pattern   *regexp.Regexp
	Method    string
	Transform Transform
}

// Matches reports whether the rule applies to url and method.
func (r Rule) Matches(url, method string) bool {
	return r.Method == normalizeMethod(method) && r.Pattern.MatchString(url)
}

// Registry is an ordered set of rules. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
	debug bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a rule and returns the registry.
// It panics if pattern or fn is nil.
func (r *Registry) Register(pattern *regexp.Regexp, method string, fn Transform) *Registry {
	if pattern == nil {
		panic("parser pattern cannot be nil")
	}
	if fn == nil {
		panic("parser transform cannot be nil")
	}

	r.mu.Lock()
	r.rules = append(r.rules, Rule{
		Pattern:   pattern,
		Method:    normalizeMethod(method),
		Transform: fn,
	})
	r.mu.Unlock()
	return r
}

// Debugging turns ambiguity detection on or off and returns the registry.
func (r *Registry) Debugging(enabled bool) *Registry {
	r.mu.Lock()
	r.debug = enabled
	r.mu.Unlock()
	return r
}

// Debug reports whether ambiguity detection is on.
func (r *Registry) Debug() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.debug
}

// Rules returns a copy of the registered rules in registration order.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules...)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Resolve returns the transform for url and method: the first matching rule's
// transform, or Identity when nothing matches. In debug mode it returns an
// *AmbiguousError when more than one rule matches.
func (r *Registry) Resolve(url, method string) (Transform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Rule
	matches := 0
	for i := range r.rules {
		if !r.rules[i].Matches(url, method) {
			continue
		}
		if !r.debug {
			parserResolutions.WithLabelValues("matched").Inc()
			return r.rules[i].Transform, nil
		}
		matches++
		if found == nil {
			found = &r.rules[i]
		}
	}

	if matches > 1 {
		parserResolutions.WithLabelValues("ambiguous").Inc()
		return nil, &AmbiguousError{
			URL:     url,
			Method:  normalizeMethod(method),
			Matches: matches,
		}
	}
	if found != nil {
		parserResolutions.WithLabelValues("matched").Inc()
		return found.Transform, nil
	}

	parserResolutions.WithLabelValues("identity").Inc()
	return Identity, nil
}

func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}
