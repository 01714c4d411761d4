// Package resolver implements C1: the prioritized source registry. A
// caller-supplied Track URL is expanded (URL resolution pass, one input
// to N) and then turned into a ready-to-decode Source (materialization
// pass), trying registered handlers in priority order until one's rules
// match.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/jrmoore/platune/internal/logging"
	"github.com/jrmoore/platune/internal/source"
)

var log = logging.For("RESOLVER")

// Rule matches an Input during dispatch. Exactly one of the fields is
// set; Any matches everything and is used as the fallback rule.
type Rule struct {
	Scheme  string
	Host    *regexp.Regexp
	Prefix  string
	AnyHTTP bool
	Any     bool
}

func (r Rule) matches(in string) bool {
	switch {
	case r.Any:
		return true
	case r.AnyHTTP:
		return strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://")
	case r.Scheme != "":
		return strings.HasPrefix(in, r.Scheme+"://")
	case r.Prefix != "":
		return strings.HasPrefix(in, r.Prefix)
	case r.Host != nil:
		u, err := url.Parse(in)
		if err != nil {
			return false
		}
		return r.Host.MatchString(u.Host)
	}
	return false
}

// UrlScheme builds a Rule matching a literal URL scheme (e.g. "file").
func UrlScheme(scheme string) Rule { return Rule{Scheme: scheme} }

// HostPattern builds a Rule matching the URL host against pattern.
func HostPattern(pattern string) Rule { return Rule{Host: regexp.MustCompile(pattern)} }

// LiteralPrefix builds a Rule matching any input with the given prefix.
func LiteralPrefix(prefix string) Rule { return Rule{Prefix: prefix} }

// AnyString is the universal fallback Rule.
func AnyString() Rule { return Rule{Any: true} }

// AnyHTTP matches any http(s) URL.
func AnyHTTP() Rule { return Rule{AnyHTTP: true} }

// UrlResolver expands one input into zero or more concrete inputs (e.g.
// a playlist link into its track URLs).
type UrlResolver interface {
	Priority() int
	Rules() []Rule
	Resolve(ctx context.Context, input string) ([]string, error)
}

// SourceResolver turns one input into a ready-to-read Source plus a
// cancellation handle for any background fetch backing it.
type SourceResolver interface {
	Priority() int
	Rules() []Rule
	Materialize(ctx context.Context, input string) (source.Source, source.CancelFunc, error)
}

// Registry holds the priority-ordered handler lists for both passes.
type Registry struct {
	urlResolvers    []UrlResolver
	sourceResolvers []SourceResolver
}

// NewRegistry builds an empty Registry; use Register/RegisterSource to
// populate it, or NewDefault for the built-in handler set.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultOptions configures NewDefault's built-in handler set.
type DefaultOptions struct {
	RequestsPerSecond float64
	BurstSize         int
}

// NewDefault builds a Registry with the file, HTTP, and extractor
// handlers registered at their standard priorities.
func NewDefault(opts DefaultOptions) *Registry {
	r := NewRegistry()

	file := NewFileResolver()
	http := NewHTTPResolver(opts.RequestsPerSecond, opts.BurstSize)
	extractor := NewExtractorResolver()

	r.RegisterSource(file)
	r.RegisterSource(http)
	r.RegisterSource(extractor)
	r.Register(extractor)

	return r
}

// Register adds a UrlResolver, keeping the list sorted by priority.
func (r *Registry) Register(u UrlResolver) {
	r.urlResolvers = append(r.urlResolvers, u)
	sort.SliceStable(r.urlResolvers, func(i, j int) bool {
		return r.urlResolvers[i].Priority() < r.urlResolvers[j].Priority()
	})
}

// RegisterSource adds a SourceResolver, keeping the list sorted by
// priority.
func (r *Registry) RegisterSource(s SourceResolver) {
	r.sourceResolvers = append(r.sourceResolvers, s)
	sort.SliceStable(r.sourceResolvers, func(i, j int) bool {
		return r.sourceResolvers[i].Priority() < r.sourceResolvers[j].Priority()
	})
}

// Resolve expands input via the first matching UrlResolver, or returns
// it unchanged if nothing matches (mirroring the Rust default resolver's
// any_string passthrough rule).
func (r *Registry) Resolve(ctx context.Context, input string) ([]string, error) {
	for _, ur := range r.urlResolvers {
		if ruleSetMatches(ur.Rules(), input) {
			return ur.Resolve(ctx, input)
		}
	}
	return []string{input}, nil
}

// Materialize turns input into a Source using the first matching
// SourceResolver.
func (r *Registry) Materialize(ctx context.Context, input string) (source.Source, source.CancelFunc, error) {
	for _, sr := range r.sourceResolvers {
		if ruleSetMatches(sr.Rules(), input) {
			return sr.Materialize(ctx, input)
		}
	}
	return nil, nil, fmt.Errorf("no source resolver matches %q", input)
}

func ruleSetMatches(rules []Rule, input string) bool {
	sawAny := false
	for _, rule := range rules {
		if rule.Any {
			sawAny = true
			continue
		}
		if rule.matches(input) {
			return true
		}
	}
	return sawAny
}
