package optimize

import "github.com/PuerkitoBio/goquery"

// Options selects which optimization steps run. Each step is independently
// toggle-able; zero value disables everything.
type Options struct {
	RemoveCSS    bool `json:"removeCSS"`
	RemoveImages bool `json:"removeImages"`
	RemoveVideos bool `json:"removeVideos"`
	RemoveFonts  bool `json:"removeFonts"`
}

// DefaultOptions enables every step.
func DefaultOptions() Options {
	return Options{
		RemoveCSS:    true,
		RemoveImages: true,
		RemoveVideos: true,
		RemoveFonts:  true,
	}
}

// RemovalCounts reports how many nodes each step mutated or removed.
type RemovalCounts struct {
	Images int `json:"imagesRemoved"`
	CSS    int `json:"cssRemoved"`
	Videos int `json:"videosRemoved"`
	Fonts  int `json:"fontsRemoved"`
}

// Add accumulates another count set into c.
func (c *RemovalCounts) Add(other RemovalCounts) {
	c.Images += other.Images
	c.CSS += other.CSS
	c.Videos += other.Videos
	c.Fonts += other.Fonts
}

// Optimizer is the capability both runtimes implement: the server operates on
// a static parse tree, the live runtime on a continuously mutating one. They
// share the RemovalCounts contract even though counting mechanisms differ.
type Optimizer interface {
	Apply(doc *goquery.Document, opts Options) (RemovalCounts, error)
}
