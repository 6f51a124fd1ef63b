// Package extract turns raw page markup into the pieces the analyzer needs:
// whitespace-joined visible text, the text of structurally important tags,
// and anchor hrefs.
package extract

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

// ImportantSelector lists the tags whose text marks a term as important.
const ImportantSelector = "h1, h2, h3, title, strong, em"

var hiddenTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// Page is the extraction result for one document.
type Page struct {
	Title     string
	Text      string
	Important []string
	Links     []string
}

// Extractor is safe for concurrent use.
type Extractor struct {
	policy *bluemonday.Policy
}

func New() *Extractor {
	return &Extractor{policy: bluemonday.StrictPolicy()}
}

// Extract parses markup and returns its visible text, important-tag text and
// raw href values in document order.
func (e *Extractor) Extract(markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}

	page := &Page{
		Title: e.clean(doc.Find("title").First().Text()),
	}

	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &b)
	}
	page.Text = e.clean(b.String())

	doc.Find(ImportantSelector).Each(func(_ int, s *goquery.Selection) {
		if text := e.clean(s.Text()); text != "" {
			page.Important = append(page.Important, text)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			page.Links = append(page.Links, href)
		}
	})
	return page, nil
}

// clean strips markup that survived as literal text (double-escaped tags),
// decodes entities, and collapses whitespace.
func (e *Extractor) clean(s string) string {
	if strings.ContainsAny(s, "<>") {
		s = html.UnescapeString(e.policy.Sanitize(s))
	}
	return strings.Join(strings.Fields(s), " ")
}

// collectText appends every visible text node under n, space separated.
func collectText(n *xhtml.Node, b *strings.Builder) {
	if n.Type == xhtml.ElementNode {
		if _, hidden := hiddenTags[n.Data]; hidden {
			return
		}
	}
	if n.Type == xhtml.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
