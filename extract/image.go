package extract

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// SourceAttrs is the priority order for reading an image source: the real
// src first, then the lazy-load attributes used by common loaders.
var SourceAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "data-srcset", "srcset"}

// DefaultContainers are the gallery/detail containers searched by the
// gallery tier, highest priority first.
var DefaultContainers = []string{
	`[data-testid="product-gallery"]`,
	`[data-test="product-gallery"]`,
	".product-gallery",
	".pdp-gallery",
	".product-images",
	".product-media",
	".product-detail",
	".pdp-main",
}

// excludedAltTokens disqualify an image (colour pickers, swatches).
var excludedAltTokens = []string{"swatch", "color"}

// minLargeDimension is the strict lower bound on both dimensions for the
// largest-image mode of the gallery tier.
const minLargeDimension = 200

// image is an <img> element with its resolved source.
type image struct {
	node   *html.Node
	src    string // "" when unresolvable
	alt    string // lower-cased
	width  int    // 0 when undeclared
	height int
}

func (im image) acceptable() bool {
	if im.src == "" {
		return false
	}
	for _, tok := range excludedAltTokens {
		if strings.Contains(im.alt, tok) {
			return false
		}
	}
	return true
}

func (im image) large() bool {
	return im.width > minLargeDimension && im.height > minLargeDimension
}

// imageStrategy is one tier of image detection.
type imageStrategy struct {
	Name string
	Find func(doc *html.Node, imgs []image) string
}

// strategies returns the image tiers in evaluation order.
func strategies(containers []string) []imageStrategy {
	return []imageStrategy{
		{Name: "alt-prod-image", Find: altContains("prod image")},
		{Name: "alt-product", Find: altContains("product")},
		{Name: "gallery", Find: inContainers(containers)},
		{Name: "any", Find: firstAcceptable},
	}
}

func altContains(token string) func(*html.Node, []image) string {
	return func(_ *html.Node, imgs []image) string {
		for _, im := range imgs {
			if strings.Contains(im.alt, token) && im.acceptable() {
				return im.src
			}
		}
		return ""
	}
}

// inContainers searches each container in priority order. Within a
// container, the largest acceptable image wins when any declares both
// dimensions above the threshold; otherwise the first acceptable image does.
func inContainers(containers []string) func(*html.Node, []image) string {
	return func(doc *html.Node, imgs []image) string {
		for _, sel := range containers {
			for _, c := range querySelectorAll(doc, sel) {
				if src := pickInContainer(c, imgs); src != "" {
					return src
				}
			}
		}
		return ""
	}
}

func pickInContainer(container *html.Node, imgs []image) string {
	var first, largest *image
	for i := range imgs {
		im := &imgs[i]
		if !im.acceptable() || !within(im.node, container) {
			continue
		}
		if first == nil {
			first = im
		}
		if im.large() && (largest == nil || im.width*im.height > largest.width*largest.height) {
			largest = im
		}
	}
	switch {
	case largest != nil:
		return largest.src
	case first != nil:
		return first.src
	}
	return ""
}

func firstAcceptable(_ *html.Node, imgs []image) string {
	for _, im := range imgs {
		if im.acceptable() {
			return im.src
		}
	}
	return ""
}

// within reports whether n is a strict descendant of ancestor.
func within(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// collectImages returns every <img> in document order.
func collectImages(doc *html.Node, base *url.URL) []image {
	var imgs []image
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			imgs = append(imgs, image{
				node:   n,
				src:    imageSource(n, base),
				alt:    strings.ToLower(getAttr(n, "alt")),
				width:  dimension(getAttr(n, "width")),
				height: dimension(getAttr(n, "height")),
			})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return imgs
}

// imageSource reads the first resolvable source attribute.
func imageSource(n *html.Node, base *url.URL) string {
	for _, attr := range SourceAttrs {
		v := strings.TrimSpace(getAttr(n, attr))
		if strings.HasSuffix(attr, "srcset") {
			v = firstSrcsetCandidate(v)
		}
		if !resolvable(v) {
			continue
		}
		return resolve(v, base)
	}
	return ""
}

func resolvable(src string) bool {
	if src == "" || src == "about:blank" {
		return false
	}
	// 1x1 placeholders injected by lazy loaders.
	return !strings.HasPrefix(strings.ToLower(src), "data:image/gif")
}

func resolve(src string, base *url.URL) string {
	if base == nil || strings.HasPrefix(src, "data:") {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

// firstSrcsetCandidate returns the URL of the first srcset entry.
func firstSrcsetCandidate(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// dimension parses an HTML width/height attribute ("640", "640px").
func dimension(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
