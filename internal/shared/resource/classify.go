// Package resource classifies page resources for blocking and counting.
//
// Classification is shared by the request-interception path and the
// document-scan path so both agree on what counts as an image, a video,
// a font, or a stylesheet.
package resource

import (
	"net/url"
	"path"
	"strings"
)

// Class is the category a resource resolves to.
type Class int

const (
	ClassOther Class = iota
	ClassImage
	ClassVideo
	ClassFont
	ClassStylesheet
	ClassScript
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case ClassImage:
		return "image"
	case ClassVideo:
		return "video"
	case ClassFont:
		return "font"
	case ClassStylesheet:
		return "stylesheet"
	case ClassScript:
		return "script"
	default:
		return "other"
	}
}

// Descriptor describes a resource reference to classify.
type Descriptor struct {
	URL       string
	Initiator string // element that referenced the resource, e.g. "link", "script"
}

var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".svg": true, ".ico": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".webm": true, ".ogg": true, ".mov": true,
	}
	fontExts = map[string]bool{
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	}
	scriptExts = map[string]bool{
		".js": true, ".mjs": true,
	}
	videoHosts = []string{"youtube", "vimeo"}
)

// Classify resolves a descriptor to a resource class. Rules apply in order,
// first match wins: image extension, video extension or video host, font
// extension, stylesheet extension or "link" initiator, script. The order is
// the documented tie-break: a path like "/assets/video.css" matches no image,
// video, or font extension and lands on stylesheet, never video.
//
// Pure function, no side effects. Query strings after the extension are
// tolerated because only the URL path component is matched.
func Classify(d Descriptor) Class {
	host, ext := splitURL(d.URL)

	switch {
	case imageExts[ext]:
		return ClassImage
	case videoExts[ext] || isVideoHost(host):
		return ClassVideo
	case fontExts[ext]:
		return ClassFont
	case ext == ".css" || strings.EqualFold(d.Initiator, "link"):
		return ClassStylesheet
	case scriptExts[ext] || strings.EqualFold(d.Initiator, "script"):
		return ClassScript
	default:
		return ClassOther
	}
}

// splitURL extracts the lowercase hostname and path extension. A URL that
// fails to parse falls back to manual trimming of query and fragment so a
// malformed reference still classifies by its visible extension.
func splitURL(raw string) (host, ext string) {
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		return strings.ToLower(parsed.Hostname()), strings.ToLower(path.Ext(parsed.Path))
	}

	trimmed := raw
	for _, sep := range []string{"?", "#"} {
		if i := strings.Index(trimmed, sep); i >= 0 {
			trimmed = trimmed[:i]
		}
	}
	return "", strings.ToLower(path.Ext(trimmed))
}

func isVideoHost(host string) bool {
	for _, h := range videoHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}
