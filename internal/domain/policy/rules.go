// Package policy builds declarative request-blocking rules from toggle state.
package policy

import (
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pagelift/pagelift/backend/internal/shared/resource"
)

// State is the toggle state the rule set derives from.
type State struct {
	Enabled           bool
	CSSRemovalEnabled bool
}

// BlockRule blocks one resource class, except for exempted hosts.
type BlockRule struct {
	Class       resource.Class
	ExemptHosts []string
}

// RuleSet is an ordered, immutable set of block rules. A new set is built on
// every state change and swapped in whole, so observers never see a partial
// rule window that blocks some but not all categories for a given state.
type RuleSet struct {
	State State
	Rules []BlockRule
}

// BuildRules derives the rule set for a toggle state. Disabled state yields
// an empty set. Enabled state always blocks images, video, and fonts.
// Stylesheets are blocked only when CSS removal is on; in that mode scripts
// are blocked as well, trading page behavior for the text-mode byte target.
func BuildRules(state State, exemptHosts []string) *RuleSet {
	rs := &RuleSet{State: state}
	if !state.Enabled {
		return rs
	}

	classes := []resource.Class{
		resource.ClassImage,
		resource.ClassVideo,
		resource.ClassFont,
	}
	if state.CSSRemovalEnabled {
		classes = append(classes, resource.ClassStylesheet, resource.ClassScript)
	}

	for _, class := range classes {
		rs.Rules = append(rs.Rules, BlockRule{Class: class, ExemptHosts: exemptHosts})
	}
	return rs
}

// Enforcer holds the live rule set and answers per-request block decisions.
// The product's own origins stay exempt unconditionally so the control
// surface keeps functioning while everything else is stripped.
type Enforcer struct {
	ownOrigins  []string
	exemptHosts []string
	current     atomic.Pointer[RuleSet]
}

// NewEnforcer creates an enforcer starting from the disabled state.
// exemptHosts accepts glob patterns such as "*.example.com".
func NewEnforcer(ownOrigins, exemptHosts []string) *Enforcer {
	e := &Enforcer{
		ownOrigins:  lowerAll(ownOrigins),
		exemptHosts: lowerAll(exemptHosts),
	}
	e.current.Store(BuildRules(State{}, e.exemptHosts))
	return e
}

// Update recomputes the rule set for the new state and swaps it atomically.
func (e *Enforcer) Update(state State) {
	e.current.Store(BuildRules(state, e.exemptHosts))
}

// Current returns the live rule set.
func (e *Enforcer) Current() *RuleSet {
	return e.current.Load()
}

// ShouldBlock decides whether an in-flight request must be blocked before
// any bytes are fetched.
func (e *Enforcer) ShouldBlock(d resource.Descriptor) bool {
	host := hostOf(d.URL)
	for _, origin := range e.ownOrigins {
		if host == origin {
			return false
		}
	}

	class := resource.Classify(d)
	for _, rule := range e.Current().Rules {
		if rule.Class != class {
			continue
		}
		if hostExempt(host, rule.ExemptHosts) {
			return false
		}
		return true
	}
	return false
}

func hostExempt(host string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, host); err == nil && ok {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func lowerAll(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, strings.ToLower(h))
	}
	return out
}
