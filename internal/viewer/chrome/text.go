package chrome

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PageText locates the page's realized text layer container and returns its
// text content. Page numbers are 1-based, matching the viewer's
// data-page-number attributes.
func (v *Viewer) PageText(pageNumber int) (string, error) {
	expr := fmt.Sprintf(
		`(function(){var el=document.querySelector(%s);return el?el.innerHTML:null})()`,
		jsString(fmt.Sprintf(`.page[data-page-number="%d"] .%s`, pageNumber, v.cfg.TextLayerClass)))

	var fragment *string
	if err := v.eval(expr, &fragment); err != nil {
		return "", fmt.Errorf("failed to read text layer of page %d: %w", pageNumber, err)
	}
	if fragment == nil {
		return "", fmt.Errorf("no text layer container for page %d", pageNumber)
	}

	return ExtractText(*fragment), nil
}

// ExtractText flattens an HTML fragment to its text content. Text layer
// spans carry one text run each; runs are joined with single spaces so word
// boundaries survive the markup.
func ExtractText(fragment string) string {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// A fragment the tokenizer cannot recover from yields no text.
		return ""
	}

	var runs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				runs = append(runs, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(runs, " ")
}
