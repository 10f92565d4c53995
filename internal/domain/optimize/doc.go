// Package optimize mutates a parsed document tree to strip heavy resources.
//
// The optimizer replaces images with text placeholders, removes video and
// other heavy embeds, strips stylesheets with a stash so they can be restored
// without a reload, and injects small marker stylesheets for system fonts and
// animation suppression. Every operation is idempotent per call: a second
// pass with the same options finds nothing left to mutate and reports zero
// additional removals.
//
// A SubtreeObserver covers the live-runtime case where content keeps arriving
// after the initial pass; the server runtime works on a static parse and
// never fires it.
package optimize
