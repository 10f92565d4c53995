package fetch

import (
	"bytes"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// DetectCharset returns the best-guess charset of raw page bytes, defaulting
// to utf-8 when detection is inconclusive.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// ParseDocument builds a parse tree from fetched bytes with automatic charset
// conversion.
//
// Bytes that do not look like a markup document (binary payloads, plain
// text) are wrapped in a minimal generated shell instead of being rejected,
// so every reachable URL yields a document the pipeline can run on.
func ParseDocument(result *Result) (*goquery.Document, error) {
	if !looksLikeMarkup(result) {
		return goquery.NewDocumentFromReader(strings.NewReader(wrapRaw(result.Body)))
	}

	detected := DetectCharset(result.Body)
	utf8Reader, err := charset.NewReader(bytes.NewReader(result.Body), detected)
	if err != nil {
		// Fall back to parsing the bytes as-is.
		return goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return goquery.NewDocumentFromReader(strings.NewReader(wrapRaw(result.Body)))
	}
	return doc, nil
}

func looksLikeMarkup(result *Result) bool {
	ct := result.ContentType
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml") || strings.HasPrefix(ct, "text/xml") {
		return true
	}
	trimmed := bytes.TrimSpace(result.Body)
	return bytes.HasPrefix(trimmed, []byte("<"))
}

// wrapRaw escapes undecodable content into a bare document so downstream
// stages always see well-formed HTML.
func wrapRaw(body []byte) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Raw content</title></head><body><pre>")
	b.WriteString(html.EscapeString(string(body)))
	b.WriteString("</pre></body></html>")
	return b.String()
}
