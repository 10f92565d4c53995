package optimize

import (
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// maxNodesPerPass bounds the work done in one observer invocation so
// mutation callbacks stay cheap on the UI thread.
const maxNodesPerPass = 500

// SubtreeObserver re-applies image, video, and CSS rules to content added to
// the tree after the initial pass, such as lazy-loaded images and
// client-rendered widgets. It is a continuous subscription for the live
// runtime; the server runtime works on a static parse and never fires it.
type SubtreeObserver struct {
	opt  *DocumentOptimizer
	opts Options

	mu    sync.Mutex
	total RemovalCounts
}

// NewSubtreeObserver creates an observer applying the given options.
// It shares the optimizer's stash so styles stripped from late content are
// still restorable.
func NewSubtreeObserver(opt *DocumentOptimizer, opts Options) *SubtreeObserver {
	return &SubtreeObserver{opt: opt, opts: opts}
}

// OnSubtreeAdded applies the relevant optimizer steps to the added subtree
// only and returns the delta counts for this invocation. Work is bounded per
// call; oversized subtrees are trimmed to the per-pass node budget and the
// remainder picked up on the next notification.
func (w *SubtreeObserver) OnSubtreeAdded(subtree *goquery.Selection) RemovalCounts {
	var delta RemovalCounts
	if subtree == nil || subtree.Length() == 0 {
		return delta
	}
	subtree = bound(subtree)

	if w.opts.RemoveImages {
		delta.Images += stripImages(subtree)
		clearBackgroundImages(subtree)
	}
	if w.opts.RemoveVideos {
		delta.Videos += stripHeavyElements(subtree)
	}
	if w.opts.RemoveCSS {
		delta.CSS += w.stripSubtreeCSS(subtree)
	}
	if w.opts.RemoveCSS || w.opts.RemoveFonts {
		delta.Fonts += w.opt.stripFontPreloads(subtree)
	}

	w.mu.Lock()
	w.total.Add(delta)
	w.mu.Unlock()
	return delta
}

// Counts returns the accumulated removals across all invocations.
func (w *SubtreeObserver) Counts() RemovalCounts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// stripSubtreeCSS removes style nodes and inline styles inside an added
// subtree, stashing them alongside the initial pass so restore still covers
// late arrivals. Reset injection is not repeated here; the document-level
// marker from the initial pass persists.
func (w *SubtreeObserver) stripSubtreeCSS(subtree *goquery.Selection) int {
	stash := w.opt.ensureStash()
	count := 0

	within(subtree, `link[rel="stylesheet"], style`).Each(func(_ int, s *goquery.Selection) {
		if isMarkerStyle(s) {
			return
		}
		if frag, err := goquery.OuterHtml(s); err == nil {
			if goquery.NodeName(s) == "style" {
				stash.styles = append(stash.styles, frag)
			} else {
				stash.links = append(stash.links, frag)
			}
		}
		s.Remove()
		count++
	})

	within(subtree, "[style]").Each(func(_ int, s *goquery.Selection) {
		stash.inline[s.Get(0)] = s.AttrOr("style", "")
		s.RemoveAttr("style")
		count++
	})

	return count
}

func bound(sel *goquery.Selection) *goquery.Selection {
	if sel.Length() <= maxNodesPerPass {
		return sel
	}
	return sel.Slice(0, maxNodesPerPass)
}
