package htmldom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/vango-dev/vrender/pkg/dom"
)

// String serializes the whole document.
func (d *Document) String() string {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return ""
	}
	return sb.String()
}

// OuterHTML serializes n and its subtree.
func OuterHTML(n dom.Node) string {
	w, ok := n.(*Node)
	if !ok || w == nil {
		return ""
	}
	var sb strings.Builder
	if err := html.Render(&sb, w.n); err != nil {
		return ""
	}
	return sb.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n dom.Node) string {
	w, ok := n.(*Node)
	if !ok || w == nil {
		return ""
	}
	var sb strings.Builder
	for c := w.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return ""
		}
	}
	return sb.String()
}

// Query returns the first node matching the XPath expression, or nil.
func (d *Document) Query(xpath string) (dom.Node, error) {
	n, err := htmlquery.Query(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("htmldom: xpath %q: %w", xpath, err)
	}
	return d.node(n), nil
}

// QueryAll returns every node matching the XPath expression.
func (d *Document) QueryAll(xpath string) ([]dom.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("htmldom: xpath %q: %w", xpath, err)
	}
	out := make([]dom.Node, len(nodes))
	for i, n := range nodes {
		out[i] = d.wrap(n)
	}
	return out, nil
}

// QueryHTML returns the serialized markup of every match.
func (d *Document) QueryHTML(xpath string) ([]string, error) {
	nodes, err := htmlquery.QueryAll(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("htmldom: xpath %q: %w", xpath, err)
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = htmlquery.OutputHTML(n, true)
	}
	return out, nil
}

// Text returns the text content of the first match, or "".
func (d *Document) Text(xpath string) (string, error) {
	n, err := htmlquery.Query(d.root, xpath)
	if err != nil {
		return "", fmt.Errorf("htmldom: xpath %q: %w", xpath, err)
	}
	if n == nil {
		return "", nil
	}
	return htmlquery.InnerText(n), nil
}
