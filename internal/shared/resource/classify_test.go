package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		want Class
	}{
		{"jpeg image", Descriptor{URL: "https://cdn.example.com/photo.jpeg"}, ClassImage},
		{"png with query string", Descriptor{URL: "https://example.com/a/b.png?v=3&w=200"}, ClassImage},
		{"svg icon", Descriptor{URL: "https://example.com/icon.svg"}, ClassImage},
		{"mp4 video", Descriptor{URL: "https://example.com/clip.mp4"}, ClassVideo},
		{"youtube embed without extension", Descriptor{URL: "https://www.youtube.com/embed/xyz"}, ClassVideo},
		{"vimeo player", Descriptor{URL: "https://player.vimeo.com/video/123"}, ClassVideo},
		{"woff2 font", Descriptor{URL: "https://fonts.example.com/inter.woff2"}, ClassFont},
		{"eot font with query", Descriptor{URL: "https://example.com/legacy.eot?#iefix"}, ClassFont},
		{"plain stylesheet", Descriptor{URL: "https://example.com/site.css"}, ClassStylesheet},
		{"link initiator without extension", Descriptor{URL: "https://example.com/styles", Initiator: "link"}, ClassStylesheet},
		{"script file", Descriptor{URL: "https://example.com/app.js"}, ClassScript},
		{"module script", Descriptor{URL: "https://example.com/app.mjs?v=2"}, ClassScript},
		{"html page", Descriptor{URL: "https://example.com/index.html"}, ClassOther},
		{"no extension", Descriptor{URL: "https://example.com/api/data"}, ClassOther},
		{"relative path image", Descriptor{URL: "/static/logo.gif?cache=no"}, ClassImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.desc))
		})
	}
}

// The documented tie-break: extension rules are evaluated in image, video,
// font, stylesheet order, so a stylesheet named like a video stays a
// stylesheet.
func TestClassifyTieBreak(t *testing.T) {
	got := Classify(Descriptor{URL: "https://example.com/assets/video.css"})
	assert.Equal(t, ClassStylesheet, got)

	// Video-host rule does not override a recognized image extension.
	got = Classify(Descriptor{URL: "https://img.youtube.com/vi/xyz/0.jpg"})
	assert.Equal(t, ClassImage, got)
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "image", ClassImage.String())
	assert.Equal(t, "stylesheet", ClassStylesheet.String())
	assert.Equal(t, "other", ClassOther.String())
}
