package extract

import "golang.org/x/net/html"

// DefaultTitleSelectors are tried in order: the generic heading first, then
// site-specific test-id and class patterns.
var DefaultTitleSelectors = []string{
	"h1",
	`[data-test="product-title"]`,
	`[data-testid="product-title"]`,
	".product-title",
	".pdp-title",
	".product-name",
}

// findTitle returns the trimmed text of the first selector match whose text
// is non-empty. Only the first element matched by each selector is
// considered.
func findTitle(doc *html.Node, selectors []string) string {
	for _, sel := range selectors {
		n := querySelector(doc, sel)
		if n == nil {
			continue
		}
		if text := textContent(n); text != "" {
			return text
		}
	}
	return ""
}
