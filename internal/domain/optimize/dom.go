package optimize

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Marker attributes and element IDs left on the document by the optimizer.
const (
	AttrPlaceholder = "data-pagelift-placeholder"
	AttrStashedSrc  = "data-pagelift-src"

	idResetStyle  = "pagelift-reset"
	idFontStyle   = "pagelift-font"
	idMotionStyle = "pagelift-motion"
)

// heavySelector matches video elements, video-hosting iframes, and generic
// heavy embeds that are removed outright rather than placeholdered.
const heavySelector = "video, audio, canvas, object, embed, svg, picture, source, iframe"

// DocumentOptimizer applies optimization steps to a goquery document.
// Not safe for concurrent use; each optimization run owns one instance.
type DocumentOptimizer struct {
	stash *Stash
}

// NewDocumentOptimizer creates an optimizer with an empty stash.
func NewDocumentOptimizer() *DocumentOptimizer {
	return &DocumentOptimizer{}
}

// Apply runs the enabled steps against the document and reports per-step
// removal counts for this call. Calling twice with identical options yields
// zero additional removals: placeholders no longer match the image rule,
// removed embeds are gone, and stripped style nodes cannot strip again.
func (o *DocumentOptimizer) Apply(doc *goquery.Document, opts Options) (RemovalCounts, error) {
	var counts RemovalCounts
	if doc == nil {
		return counts, fmt.Errorf("nil document")
	}

	if opts.RemoveImages {
		counts.Images += stripImages(doc.Selection)
		clearBackgroundImages(doc.Selection)
	}
	if opts.RemoveVideos {
		counts.Videos += stripHeavyElements(doc.Selection)
	}
	if opts.RemoveCSS {
		counts.CSS += o.stripCSS(doc)
		counts.Fonts += o.stripFontPreloads(doc.Selection)
	}
	if opts.RemoveFonts {
		counts.Fonts += o.stripFontPreloads(doc.Selection)
		ensureStyle(doc, idFontStyle, fontCSS)
	}

	// Animation suppression runs on every pass, idempotent via marker.
	ensureStyle(doc, idMotionStyle, motionCSS)

	return counts, nil
}

// stripImages replaces every image with a resolved source by a text
// placeholder. The original source reference is stashed on the placeholder
// so nothing is lost, and the placeholder carries the marker attribute the
// reset stylesheet targets. Count = number of nodes mutated.
func stripImages(scope *goquery.Selection) int {
	count := 0
	within(scope, "img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}

		label := "[Image removed]"
		if alt := strings.TrimSpace(s.AttrOr("alt", "")); alt != "" {
			label = "[Image: " + alt + "]"
		}

		s.ReplaceWithHtml(fmt.Sprintf(
			`<span %s="1" %s="%s">%s</span>`,
			AttrPlaceholder, AttrStashedSrc, html.EscapeString(src), html.EscapeString(label),
		))
		count++
	})
	return count
}

// clearBackgroundImages clears inline background-image declarations and
// substitutes a flat fill. Purely visual; not counted toward imagesRemoved.
func clearBackgroundImages(scope *goquery.Selection) {
	within(scope, "[style]").Each(func(_ int, s *goquery.Selection) {
		style := s.AttrOr("style", "")
		if !strings.Contains(strings.ToLower(style), "background-image") {
			return
		}

		var kept []string
		for _, decl := range strings.Split(style, ";") {
			d := strings.TrimSpace(decl)
			if d == "" || strings.HasPrefix(strings.ToLower(d), "background-image") {
				continue
			}
			kept = append(kept, d)
		}
		kept = append(kept, "background-color:#f5f5f5")
		s.SetAttr("style", strings.Join(kept, ";"))
	})
}

// stripHeavyElements removes (not placeholders) videos, audio, canvases,
// plugins, inline SVG, picture sources, and iframes. Count = nodes removed.
func stripHeavyElements(scope *goquery.Selection) int {
	matched := within(scope, heavySelector)
	count := matched.Length()
	matched.Remove()
	return count
}

// within matches selector against the scope's own nodes and descendants, so
// the same rule works for a whole document and for an added subtree.
func within(scope *goquery.Selection, selector string) *goquery.Selection {
	return scope.Filter(selector).AddSelection(scope.Find(selector))
}
