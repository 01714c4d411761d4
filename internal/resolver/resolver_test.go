package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmoore/platune/internal/source"
)

func TestRuleMatching(t *testing.T) {
	cases := []struct {
		name  string
		rule  Rule
		input string
		want  bool
	}{
		{"scheme match", UrlScheme("file"), "file:///a/b.mp3", true},
		{"scheme mismatch", UrlScheme("file"), "http://x/a.mp3", false},
		{"prefix match", LiteralPrefix("ytdl://"), "ytdl://abc", true},
		{"any http https", AnyHTTP(), "https://x/a.mp3", true},
		{"any http plain", AnyHTTP(), "http://x/a.mp3", true},
		{"any http mismatch", AnyHTTP(), "ftp://x/a.mp3", false},
		{"host pattern match", HostPattern(`(^|\.)example\.com$`), "https://cdn.example.com/a.mp3", true},
		{"host pattern mismatch", HostPattern(`(^|\.)example\.com$`), "https://other.org/a.mp3", false},
		{"any string always", AnyString(), "whatever-this-is", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.rule.matches(c.input))
		})
	}
}

type stubURLResolver struct {
	priority int
	rules    []Rule
	expand   func(string) []string
}

func (s stubURLResolver) Priority() int { return s.priority }
func (s stubURLResolver) Rules() []Rule { return s.rules }
func (s stubURLResolver) Resolve(_ context.Context, input string) ([]string, error) {
	return s.expand(input), nil
}

type stubSourceResolver struct {
	priority int
	rules    []Rule
	name     string
}

func (s stubSourceResolver) Priority() int { return s.priority }
func (s stubSourceResolver) Rules() []Rule { return s.rules }
func (s stubSourceResolver) Materialize(_ context.Context, input string) (source.Source, source.CancelFunc, error) {
	return nil, nil, errStub{name: s.name}
}

type errStub struct{ name string }

func (e errStub) Error() string { return "materialized by " + e.name }

func TestRegistryResolvePassesThroughWhenNothingMatches(t *testing.T) {
	r := NewRegistry()
	got, err := r.Resolve(context.Background(), "some-opaque-input")
	require.NoError(t, err)
	assert.Equal(t, []string{"some-opaque-input"}, got)
}

func TestRegistryResolveTriesHighestPriorityMatchFirst(t *testing.T) {
	r := NewRegistry()
	r.Register(stubURLResolver{
		priority: 5,
		rules:    []Rule{AnyString()},
		expand:   func(s string) []string { return []string{"low-priority:" + s} },
	})
	r.Register(stubURLResolver{
		priority: 1,
		rules:    []Rule{LiteralPrefix("ytdl://")},
		expand:   func(s string) []string { return []string{"high-priority:" + s} },
	})

	got, err := r.Resolve(context.Background(), "ytdl://abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"high-priority:ytdl://abc"}, got)
}

func TestRegistryMaterializeUsesFirstMatchingSourceResolver(t *testing.T) {
	r := NewRegistry()
	r.RegisterSource(stubSourceResolver{priority: 3, rules: []Rule{AnyString()}, name: "fallback"})
	r.RegisterSource(stubSourceResolver{priority: 1, rules: []Rule{UrlScheme("file")}, name: "file"})

	_, _, err := r.Materialize(context.Background(), "file:///tmp/x.mp3")
	require.Error(t, err)
	assert.Equal(t, "materialized by file", err.Error())
}

func TestRegistryMaterializeNoMatchReturnsError(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Materialize(context.Background(), "anything")
	assert.Error(t, err)
}

func TestRuleSetMatchesAnyFallback(t *testing.T) {
	rules := []Rule{UrlScheme("file"), AnyString()}
	assert.True(t, ruleSetMatches(rules, "http://example.com/x"))
	assert.True(t, ruleSetMatches(rules, "file:///x"))
}

func TestNewDefaultRegistersAllBuiltins(t *testing.T) {
	r := NewDefault(DefaultOptions{RequestsPerSecond: 10, BurstSize: 2})
	require.Len(t, r.sourceResolvers, 3)
	require.Len(t, r.urlResolvers, 1)
}
