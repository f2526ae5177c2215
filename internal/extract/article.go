// Package extract turns rendered feed markup into structured posts. The
// engine never touches a browser directly: it consumes the narrow
// ArticleHandle capability, so the same code runs against live page HTML in
// production and against string fixtures in tests.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleHandle is the capability surface the engine needs from one rendered
// feed item: scoped CSS lookups plus attribute and text access. Implementations
// must be read-only; the engine never mutates the underlying node.
type ArticleHandle interface {
	// FindFirst returns the first descendant matching the CSS selector,
	// or ok=false when there is no match.
	FindFirst(selector string) (ArticleHandle, bool)
	// FindAll returns every descendant matching the CSS selector, in
	// document order. An empty slice means no matches.
	FindAll(selector string) []ArticleHandle
	// Attr returns the named attribute of this node.
	Attr(name string) (string, bool)
	// Text returns the concatenated text content of this node's subtree.
	Text() string
}

type goqueryHandle struct {
	sel *goquery.Selection
}

func (h goqueryHandle) FindFirst(selector string) (ArticleHandle, bool) {
	s := h.sel.Find(selector).First()
	if s.Length() == 0 {
		return nil, false
	}
	return goqueryHandle{sel: s}, true
}

func (h goqueryHandle) FindAll(selector string) []ArticleHandle {
	matches := h.sel.Find(selector)
	out := make([]ArticleHandle, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, goqueryHandle{sel: s})
	})
	return out
}

func (h goqueryHandle) Attr(name string) (string, bool) {
	return h.sel.Attr(name)
}

func (h goqueryHandle) Text() string {
	return h.sel.Text()
}

// FromSelection wraps a parsed goquery node as an ArticleHandle.
func FromSelection(sel *goquery.Selection) ArticleHandle {
	return goqueryHandle{sel: sel}
}

// ArticlesFromHTML parses a captured page snapshot and returns a handle per
// rendered feed article, in document order. Articles that appear while
// scrolling are picked up by re-capturing and calling this again; the
// acquisition loop's seen-set absorbs the overlap.
func ArticlesFromHTML(html string) ([]ArticleHandle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return goqueryHandle{sel: doc.Selection}.FindAll(selArticle), nil
}
