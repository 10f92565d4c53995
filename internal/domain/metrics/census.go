package metrics

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// CountResources takes a census of strippable resources in a parse tree.
// Used to record the baseline before the optimizer mutates the document.
func CountResources(root *html.Node) Census {
	if root == nil {
		return Census{}
	}

	census := Census{
		Images: len(htmlquery.Find(root, "//img[@src]")),
		CSS: len(htmlquery.Find(root, "//link[@rel='stylesheet']")) +
			len(htmlquery.Find(root, "//style")),
		Videos: len(htmlquery.Find(root, "//video")) +
			len(htmlquery.Find(root, "//audio")),
		Fonts: len(htmlquery.Find(root, "//link[@rel='preload'][@as='font']")),
	}

	// Video-hosting iframes count as videos; other iframes do not.
	for _, n := range htmlquery.Find(root, "//iframe[@src]") {
		src := strings.ToLower(htmlquery.SelectAttr(n, "src"))
		if strings.Contains(src, "youtube") || strings.Contains(src, "vimeo") {
			census.Videos++
		}
	}

	return census
}
