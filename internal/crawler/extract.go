package crawler

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose entire subtree is boilerplate, not content.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"button":   true,
	"a":        true,
}

// Elements whose text is worth keeping, one line per element.
var contentElements = map[string]bool{
	"h1": true,
	"h2": true,
	"h3": true,
	"p":  true,
	"li": true,
}

// ExtractText pulls the readable content out of an HTML page: headings,
// paragraphs and list items, with scripts, styles, navigation, chrome and
// link text dropped. Returns one line per content element.
func ExtractText(htmlSrc string) string {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return ""
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElements[n.Data] || hiddenNode(n) {
				return
			}
			if contentElements[n.Data] {
				text := collectText(n)
				if text != "" {
					lines = append(lines, text)
				}
				// Nested content elements (li under li) are already
				// flattened into this line.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n")
}

// collectText gathers the visible text under n, skipping boilerplate
// subtrees, collapsed to single spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (skipElements[n.Data] || hiddenNode(n)) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func hiddenNode(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "aria-hidden" && a.Val == "true" {
			return true
		}
	}
	return false
}

// ExtractLinks returns the href values of all anchors that are same-site
// relative paths under the given section prefix. Fragments and query
// strings are stripped; duplicates are dropped.
func ExtractLinks(htmlSrc, section string) []string {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				href := strings.TrimSpace(a.Val)
				if i := strings.IndexAny(href, "#?"); i >= 0 {
					href = href[:i]
				}
				if href == "" || !strings.HasPrefix(href, "/") || strings.HasPrefix(href, "//") {
					continue
				}
				if !strings.HasPrefix(href, section) {
					continue
				}
				if !seen[href] {
					seen[href] = true
					links = append(links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}
