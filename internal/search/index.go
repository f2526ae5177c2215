// Package search ranks a tenant's stored posts against a free-text query.
//
// The index is built per request from rows the caller already loaded, holds
// token sets in memory, and is read-only once built, so one instance can
// serve concurrent lookups. Scoring is Jaccard similarity between the query
// token set and each post's: |Q ∩ P| / |Q ∪ P|. A post's tokens cover its
// text plus the author handle and display name, so a query for a handle
// finds that author's posts even when the text never repeats the name.
// Ordering is deterministic: score, then recency, then external id.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// Result is one ranked post with its similarity score.
type Result struct {
	Post  domain.StoredPost
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// defaultK applies when TopK is called with a non-positive k.
const defaultK = 10

// Option adjusts how NewPostIndex selects and tokenizes posts.
type Option func(*settings)

type settings struct {
	minRunes int
	stop     map[string]struct{}
	capDocs  int
}

// WithMinContentRunes drops posts whose normalized text is shorter than n
// runes. By default only empty text is dropped; posts are short by nature.
func WithMinContentRunes(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.minRunes = n
		}
	}
}

// WithStopwords removes the given words from both post and query token sets.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			s.stop = m
		}
	}
}

// WithMaxDocs caps how many posts are indexed (first-come wins).
func WithMaxDocs(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capDocs = n
		}
	}
}

type entry struct {
	post   domain.StoredPost
	tokens map[string]struct{}
}

type index struct {
	opts settings
	docs []entry
}

// NewPostIndex builds an Index over the given posts. The slice order is the
// indexing order; callers list newest-first so a WithMaxDocs cap keeps the
// most recent posts.
func NewPostIndex(posts []domain.StoredPost, opts ...Option) Index {
	var s settings
	for _, o := range opts {
		o(&s)
	}

	idx := &index{opts: s, docs: make([]entry, 0, len(posts))}
	for _, p := range posts {
		text := NormalizeContent(p.Content)
		if text == "" {
			continue
		}
		if s.minRunes > 0 && utf8.RuneCountInString(text) < s.minRunes {
			continue
		}
		toks := tokenize(searchSurface(p, text), s.stop)
		if len(toks) == 0 {
			continue
		}
		idx.docs = append(idx.docs, entry{post: p, tokens: toks})
		if s.capDocs > 0 && len(idx.docs) >= s.capDocs {
			break
		}
	}
	return idx
}

// searchSurface widens what a post matches on beyond its body: author
// identity and conversation context are part of what people remember about
// a post.
func searchSurface(p domain.StoredPost, normalized string) string {
	s := normalized + " " + p.AuthorHandle + " " + p.AuthorName
	if p.IsReply && p.ReplyToHandle != "" {
		s += " " + p.ReplyToHandle
	}
	if p.IsRepost && p.RepostOfAuthor != "" {
		s += " " + p.RepostOfAuthor
	}
	return s
}

// TopK returns up to k best-matching posts by Jaccard similarity. Equal
// scores rank newer posts first so fresh material surfaces ahead of stale
// matches; equal timestamps fall back to the external id for stable output.
func (i *index) TopK(query string, k int) []Result {
	qTokens := tokenize(query, i.opts.stop)
	if len(qTokens) == 0 || len(i.docs) == 0 {
		return nil
	}
	if k <= 0 {
		k = defaultK
	}

	ranked := make([]Result, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		shared := intersection(qTokens, d.tokens)
		if shared == 0 {
			continue
		}
		union := len(qTokens) + len(d.tokens) - shared
		ranked = append(ranked, Result{Post: d.post, Score: float64(shared) / float64(union)})
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		ra, rb := ranked[a], ranked[b]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		if !ra.Post.StoredAt.Equal(rb.Post.StoredAt) {
			return ra.Post.StoredAt.After(rb.Post.StoredAt)
		}
		return ra.Post.ExternalID < rb.Post.ExternalID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, drop := stop[w]; drop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func intersection(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
