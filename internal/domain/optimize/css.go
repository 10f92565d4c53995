package optimize

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// fontCSS forces the system font stack everywhere.
const fontCSS = `*{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif !important;}`

// motionCSS disables animation, transitions, and smooth scrolling.
const motionCSS = `*{animation:none !important;transition:none !important;scroll-behavior:auto !important;}`

// resetCSS is the minimal stylesheet injected after CSS removal so text stays
// legible: system font, white background, dashed-border image placeholders,
// and a visible link color.
const resetCSS = `body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;background:#fff;color:#111;margin:8px;line-height:1.5;}` +
	`[` + AttrPlaceholder + `]{display:inline-block;border:1px dashed #999;padding:2px 6px;color:#555;background:#fafafa;}` +
	`a{color:#0645ad;text-decoration:underline;}`

// Stash holds everything CSS removal strips so a later restore can rebuild
// the page without a full reload. Link and style nodes are kept as serialized
// fragments and re-attached by re-parsing, which clones them instead of
// reusing a detached node with unexpected internal state. Inline style values
// are keyed by node since those elements stay in the tree.
type Stash struct {
	links     []string
	styles    []string
	fontLinks []string
	inline    map[*html.Node]string
}

func newStash() *Stash {
	return &Stash{inline: make(map[*html.Node]string)}
}

// Empty reports whether nothing has been stashed.
func (s *Stash) Empty() bool {
	return s == nil || (len(s.links) == 0 && len(s.styles) == 0 && len(s.fontLinks) == 0 && len(s.inline) == 0)
}

func (o *DocumentOptimizer) ensureStash() *Stash {
	if o.stash == nil {
		o.stash = newStash()
	}
	return o.stash
}

// Stash exposes the current stash, nil until CSS removal has run.
func (o *DocumentOptimizer) Stash() *Stash {
	return o.stash
}

// stripCSS stashes and removes stylesheet links, style-preload links, style
// tags, and inline style attributes, then injects the reset stylesheet.
// Count = removed link + style + inline-attribute nodes. Injected marker
// styles are excluded from matching, which is what makes a second pass
// report zero.
func (o *DocumentOptimizer) stripCSS(doc *goquery.Document) int {
	stash := o.ensureStash()
	count := 0

	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if frag, err := goquery.OuterHtml(s); err == nil {
			stash.links = append(stash.links, frag)
		}
		s.Remove()
		count++
	})

	doc.Find(`link[rel="preload"]`).Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("as", ""), "style") {
			return
		}
		if frag, err := goquery.OuterHtml(s); err == nil {
			stash.links = append(stash.links, frag)
		}
		s.Remove()
		count++
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if isMarkerStyle(s) {
			return
		}
		if frag, err := goquery.OuterHtml(s); err == nil {
			stash.styles = append(stash.styles, frag)
		}
		s.Remove()
		count++
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		stash.inline[node] = s.AttrOr("style", "")
		s.RemoveAttr("style")
		count++
	})

	ensureStyle(doc, idResetStyle, resetCSS)
	return count
}

// stripFontPreloads stashes and removes font preload links. Counted
// separately from stylesheet removals as fontsRemoved.
func (o *DocumentOptimizer) stripFontPreloads(scope *goquery.Selection) int {
	count := 0
	within(scope, `link[rel="preload"]`).Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("as", ""), "font") {
			return
		}
		if frag, err := goquery.OuterHtml(s); err == nil {
			o.ensureStash().fontLinks = append(o.ensureStash().fontLinks, frag)
		}
		s.Remove()
		count++
	})
	return count
}

// RestoreCSS undoes a prior CSS removal without a reload: the injected reset
// is dropped, stashed link and style fragments are re-attached to head, and
// inline style attributes are restored by value. The stash is cleared so a
// second restore is a no-op.
func (o *DocumentOptimizer) RestoreCSS(doc *goquery.Document) int {
	if o.stash.Empty() {
		return 0
	}

	doc.Find("#" + idResetStyle).Remove()

	head := doc.Find("head").First()
	restored := 0
	for _, frag := range o.stash.links {
		head.AppendHtml(frag)
		restored++
	}
	for _, frag := range o.stash.fontLinks {
		head.AppendHtml(frag)
		restored++
	}
	for _, frag := range o.stash.styles {
		head.AppendHtml(frag)
		restored++
	}
	for node, style := range o.stash.inline {
		setNodeAttr(node, "style", style)
		restored++
	}

	o.stash = nil
	return restored
}

// ensureStyle appends a marker stylesheet to head once; later calls detect
// the marker and skip.
func ensureStyle(doc *goquery.Document, id, css string) bool {
	if doc.Find("#"+id).Length() > 0 {
		return false
	}

	head := doc.Find("head").First()
	if head.Length() == 0 {
		// Parser always synthesizes head for full documents; fragments may lack one.
		doc.Find("html").First().PrependHtml("<head></head>")
		head = doc.Find("head").First()
		if head.Length() == 0 {
			return false
		}
	}

	head.AppendHtml(fmt.Sprintf(`<style id=%q>%s</style>`, id, css))
	return true
}

func isMarkerStyle(s *goquery.Selection) bool {
	switch s.AttrOr("id", "") {
	case idResetStyle, idFontStyle, idMotionStyle:
		return true
	}
	return false
}

func setNodeAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
