package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/backend/internal/shared/resource"
)

func classesOf(rs *RuleSet) []resource.Class {
	var classes []resource.Class
	for _, r := range rs.Rules {
		classes = append(classes, r.Class)
	}
	return classes
}

func TestBuildRulesDisabled(t *testing.T) {
	rs := BuildRules(State{Enabled: false, CSSRemovalEnabled: true}, nil)
	assert.Empty(t, rs.Rules)
}

func TestBuildRulesEnabled(t *testing.T) {
	rs := BuildRules(State{Enabled: true}, nil)
	assert.Equal(t, []resource.Class{
		resource.ClassImage,
		resource.ClassVideo,
		resource.ClassFont,
	}, classesOf(rs))
}

func TestBuildRulesTextMode(t *testing.T) {
	rs := BuildRules(State{Enabled: true, CSSRemovalEnabled: true}, nil)
	assert.Equal(t, []resource.Class{
		resource.ClassImage,
		resource.ClassVideo,
		resource.ClassFont,
		resource.ClassStylesheet,
		resource.ClassScript,
	}, classesOf(rs))
}

func TestEnforcerShouldBlock(t *testing.T) {
	e := NewEnforcer([]string{"app.pagelift.dev"}, []string{"*.trusted.com"})
	e.Update(State{Enabled: true, CSSRemovalEnabled: true})

	assert.True(t, e.ShouldBlock(resource.Descriptor{URL: "https://cdn.example.com/hero.png"}))
	assert.True(t, e.ShouldBlock(resource.Descriptor{URL: "https://example.com/site.css"}))
	assert.True(t, e.ShouldBlock(resource.Descriptor{URL: "https://example.com/app.js"}))

	// Own origin is exempt unconditionally.
	assert.False(t, e.ShouldBlock(resource.Descriptor{URL: "https://app.pagelift.dev/logo.png"}))

	// Exempt host globs.
	assert.False(t, e.ShouldBlock(resource.Descriptor{URL: "https://img.trusted.com/pic.jpg"}))

	// Unblocked classes pass through.
	assert.False(t, e.ShouldBlock(resource.Descriptor{URL: "https://example.com/page.html"}))
}

func TestEnforcerCSSOnlyWhenEnabled(t *testing.T) {
	e := NewEnforcer(nil, nil)
	e.Update(State{Enabled: true, CSSRemovalEnabled: false})

	assert.True(t, e.ShouldBlock(resource.Descriptor{URL: "https://example.com/a.png"}))
	assert.False(t, e.ShouldBlock(resource.Descriptor{URL: "https://example.com/site.css"}))
	assert.False(t, e.ShouldBlock(resource.Descriptor{URL: "https://example.com/app.js"}))
}

func TestEnforcerAtomicSwap(t *testing.T) {
	e := NewEnforcer(nil, nil)
	require.Empty(t, e.Current().Rules)

	e.Update(State{Enabled: true})
	first := e.Current()
	assert.Len(t, first.Rules, 3)

	e.Update(State{Enabled: false})
	assert.Empty(t, e.Current().Rules)

	// The previously observed set is immutable.
	assert.Len(t, first.Rules, 3)
}
