// Package snapshot renders a bounded-size plain-text HTML artifact of an
// optimized document for caching and serving.
package snapshot

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TargetByteSize is the snapshot byte budget (50 KiB).
const TargetByteSize = 51200

// minKeepRunes is the truncation floor: even a pathological overshoot keeps
// at least this much text.
const minKeepRunes = 500

// emptyFallback replaces documents with no visible text.
const emptyFallback = "(no text content)"

// Artifact is an immutable snapshot of the optimized page. A new optimization
// run supersedes it with a fresh artifact; it is never mutated in place.
type Artifact struct {
	HTML       string    `json:"html"`
	ByteSize   int       `json:"byteSize"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Builder produces snapshots. The sanitizer strips any markup remnants from
// extracted text and entity-escapes it for safe embedding in the shell.
type Builder struct {
	sanitizer *bluemonday.Policy
}

// NewBuilder creates a builder with a strict text-only sanitization policy.
func NewBuilder() *Builder {
	return &Builder{sanitizer: bluemonday.StrictPolicy()}
}

// Build extracts the document's visible text and wraps it in a minimal fixed
// shell. Byte size is measured in UTF-8 bytes, so multi-byte characters count
// correctly against the budget.
//
// If the first render is over budget the text is truncated proportionally to
// the overshoot with a 10% safety margin and a 500-character floor, and the
// shell is rebuilt exactly once. That single retry is the implemented policy:
// the result is accepted even if still marginally over budget, there is no
// iterative refinement loop.
func (b *Builder) Build(doc *goquery.Document) Artifact {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Optimized page"
	}

	text := visibleText(doc)
	if text == "" {
		text = emptyFallback
	}

	rendered := b.shell(title, text)
	if len(rendered) > TargetByteSize {
		ratio := float64(TargetByteSize) / float64(len(rendered))
		runes := []rune(text)
		keep := int(float64(len(runes)) * ratio * 0.9)
		if keep < minKeepRunes {
			keep = minKeepRunes
		}
		if keep < len(runes) {
			text = string(runes[:keep])
		}
		rendered = b.shell(title, text)
	}

	return Artifact{
		HTML:       rendered,
		ByteSize:   len(rendered),
		CapturedAt: time.Now(),
	}
}

// shell wraps escaped text in the fixed snapshot document. Styling rides on
// inline style attributes; the shell deliberately contains no style element,
// so consumers can assert the optimized output is stylesheet-free.
func (b *Builder) shell(title, text string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#fff;color:#111;margin:16px;">
<pre style="white-space:pre-wrap;word-wrap:break-word;font:inherit;">%s</pre>
</body>
</html>`, b.sanitizer.Sanitize(title), b.sanitizer.Sanitize(text))
}

// visibleText walks the body collecting text nodes, skipping script, style,
// and noscript subtrees.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}

	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body.Get(0))

	return strings.Join(strings.Fields(buf.String()), " ")
}
