package extract

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testEngine() *Engine {
	return &Engine{Log: zerolog.Nop()}
}

// firstArticle parses an HTML fixture and returns its first feed article.
func firstArticle(t *testing.T, html string) ArticleHandle {
	t.Helper()
	articles, err := ArticlesFromHTML(html)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	if len(articles) == 0 {
		t.Fatalf("fixture contains no article[data-testid='tweet']")
	}
	return articles[0]
}

func TestParseCompactCount(t *testing.T) {
	ptr := func(n int) *int { return &n }
	cases := []struct {
		in   string
		want *int
	}{
		{"1.2K", ptr(1200)},
		{"3M", ptr(3000000)},
		{"42", ptr(42)},
		{"1,234", ptr(1234)},
		{"2.5k", ptr(2500)},
		{" 900 ", ptr(900)},
		{"", nil},
		{"   ", nil},
		{"abc", nil},
		{"-5", nil},
		{"K", nil},
	}
	for _, c := range cases {
		got := ParseCompactCount(c.in)
		switch {
		case c.want == nil && got != nil:
			t.Fatalf("ParseCompactCount(%q) = %d; want nil", c.in, *got)
		case c.want != nil && got == nil:
			t.Fatalf("ParseCompactCount(%q) = nil; want %d", c.in, *c.want)
		case c.want != nil && *got != *c.want:
			t.Fatalf("ParseCompactCount(%q) = %d; want %d", c.in, *got, *c.want)
		}
	}
}

func TestLeadingCount(t *testing.T) {
	if c := leadingCount("1234 Likes. Like"); c == nil || *c != 1234 {
		t.Fatalf("leadingCount full label failed: %v", c)
	}
	if c := leadingCount("1,234 replies"); c == nil || *c != 1234 {
		t.Fatalf("leadingCount grouped label failed: %v", c)
	}
	if c := leadingCount("Like"); c != nil {
		t.Fatalf("leadingCount without digits should be nil, got %d", *c)
	}
}

func TestExtract_NoPermalink_ReturnsNil(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="tweetText">orphaned card without a status link</div>
		<a href="/alice" role="link">Alice</a>
	</article>`

	if post := testEngine().Extract(firstArticle(t, html)); post != nil {
		t.Fatalf("expected nil for article without external id, got %+v", post)
	}
}

func TestExtract_FullArticle(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/alice" role="link">Alice Wonder</a>@alice·2h</div>
		<a href="/alice/status/1790000000000000001" role="link"><time datetime="2025-03-02T10:30:00.000Z">Mar 2</time></a>
		<div data-testid="tweetText">Shipping the new build today.</div>
		<div data-testid="tweetPhoto"><img src="https://pbs.example.com/media/abc.jpg"/></div>
		<button data-testid="reply" aria-label="12 Replies. Reply"><span>12</span></button>
		<button data-testid="retweet" aria-label="Repost"><span>1.2K</span></button>
		<button data-testid="like" aria-label="3456 Likes. Like"><span>3.4K</span></button>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if post.ExternalID != "1790000000000000001" {
		t.Fatalf("ExternalID = %q", post.ExternalID)
	}
	if post.AuthorHandle != "alice" || post.AuthorName != "Alice Wonder" {
		t.Fatalf("author = %q / %q", post.AuthorHandle, post.AuthorName)
	}
	if post.Content != "Shipping the new build today." {
		t.Fatalf("Content = %q", post.Content)
	}
	if post.IsRepost || post.RepostOfAuthor != "" {
		t.Fatalf("unexpected repost attribution: %+v", post)
	}
	if post.Replies == nil || *post.Replies != 12 {
		t.Fatalf("Replies = %v; want 12 via aria-label", post.Replies)
	}
	// aria-label has no digits, so the compact span text is used.
	if post.Reposts == nil || *post.Reposts != 1200 {
		t.Fatalf("Reposts = %v; want 1200 via compact text", post.Reposts)
	}
	// Exact label wins over the rounded on-screen number.
	if post.Likes == nil || *post.Likes != 3456 {
		t.Fatalf("Likes = %v; want 3456 via aria-label", post.Likes)
	}
	if len(post.MediaURLs) != 1 || post.MediaURLs[0] != "https://pbs.example.com/media/abc.jpg" {
		t.Fatalf("MediaURLs = %v", post.MediaURLs)
	}
	want := time.Date(2025, 3, 2, 10, 30, 0, 0, time.UTC)
	if post.PostedAt == nil || !post.PostedAt.Equal(want) {
		t.Fatalf("PostedAt = %v; want %v", post.PostedAt, want)
	}
	if post.IsReply {
		t.Fatalf("plain post flagged as reply")
	}
}

func TestExtract_RepostReattribution(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="socialContext"><a href="/carol" role="link">Carol</a> reposted</div>
		<div data-testid="User-Name"><a href="/alice" role="link">Alice Wonder</a>@alice·5h</div>
		<a href="/alice/status/1790000000000000002" role="link">permalink</a>
		<div data-testid="tweetText">original content</div>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if !post.IsRepost {
		t.Fatalf("social context should mark a repost")
	}
	if post.RepostOfAuthor != "carol" || post.AuthorHandle != "alice" {
		t.Fatalf("attribution = amplifier %q, author %q; want carol/alice", post.RepostOfAuthor, post.AuthorHandle)
	}
}

func TestExtract_RepostSingleLink_KeepsAuthor(t *testing.T) {
	// Repost annotation without a second profile link: the single handle
	// stays the author, no amplifier attribution.
	html := `<article data-testid="tweet">
		<div data-testid="socialContext">hat repostet</div>
		<div data-testid="User-Name"><a href="/alice" role="link">Alice</a>@alice</div>
		<a href="/alice/status/1790000000000000003" role="link">permalink</a>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil || !post.IsRepost {
		t.Fatalf("expected repost, got %+v", post)
	}
	if post.AuthorHandle != "alice" || post.RepostOfAuthor != "" {
		t.Fatalf("single-link repost attribution wrong: %+v", post)
	}
}

func TestExtract_ReplyAnnotation_CapturesHandle(t *testing.T) {
	// Live layout: author header first, then the annotation, then the body.
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/alice" role="link">Alice</a>@alice</div>
		<div>Replying to <a href="/bob" role="link">@bob</a></div>
		<a href="/alice/status/1790000000000000004" role="link">permalink</a>
		<div data-testid="tweetText">agreed!</div>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if !post.IsReply || post.ReplyToHandle != "bob" {
		t.Fatalf("reply detection = %v/%q; want true/bob", post.IsReply, post.ReplyToHandle)
	}
	if post.AuthorHandle != "alice" {
		t.Fatalf("annotation link must not displace the author, got %q", post.AuthorHandle)
	}
}

func TestExtract_ReplyAnnotation_German(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/alice" role="link">Alice</a>@alice</div>
		<a href="/alice/status/1790000000000000005" role="link">permalink</a>
		<div>Antwort an <span>@karl</span></div>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil || !post.IsReply || post.ReplyToHandle != "karl" {
		t.Fatalf("german reply annotation failed: %+v", post)
	}
}

func TestExtract_ReplyAnnotation_SelfTargetIgnored(t *testing.T) {
	// "Replying to" pointing at the author herself is a thread, not a reply
	// to someone else; only the multi-author heuristic may still fire.
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/alice" role="link">Alice</a>@alice</div>
		<a href="/alice/status/1790000000000000006" role="link">permalink</a>
		<div>Replying to @alice</div>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if post.IsReply || post.ReplyToHandle != "" {
		t.Fatalf("self-directed annotation must not mark a reply: %+v", post)
	}
}

func TestExtract_ReplyByMultipleAuthorBlocks(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/alice" role="link">Alice</a>@alice</div>
		<div data-testid="User-Name"><a href="/dave" role="link">Dave</a>@dave</div>
		<a href="/dave/status/1790000000000000007" role="link">permalink</a>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if !post.IsReply {
		t.Fatalf("two author blocks should mark a reply thread")
	}
	if post.ReplyToHandle != "" {
		t.Fatalf("heuristic signal must not invent an addressee, got %q", post.ReplyToHandle)
	}
}

func TestExtract_NavigationLinksNotAuthors(t *testing.T) {
	html := `<article data-testid="tweet">
		<a href="/home" role="link">Home</a>
		<a href="/explore" role="link">Explore</a>
		<a href="/i" role="link">chrome</a>
		<div data-testid="User-Name"><a href="/erin" role="link">Erin</a>@erin</div>
		<a href="/erin/status/1790000000000000008" role="link">permalink</a>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if post.AuthorHandle != "erin" {
		t.Fatalf("AuthorHandle = %q; nav links must be skipped", post.AuthorHandle)
	}
}

func TestExtract_MediaURLValidation(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/erin" role="link">Erin</a>@erin</div>
		<a href="/erin/status/1790000000000000009" role="link">permalink</a>
		<div data-testid="tweetPhoto"><img src="https://pbs.example.com/ok.jpg"/></div>
		<div data-testid="tweetPhoto"><img src="data:image/png;base64,AAAA"/></div>
		<div data-testid="tweetPhoto"><img src="/relative/no-host.jpg"/></div>
		<div data-testid="tweetPhoto"><img src="ftp://files.example.com/x.jpg"/></div>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if len(post.MediaURLs) != 1 || post.MediaURLs[0] != "https://pbs.example.com/ok.jpg" {
		t.Fatalf("MediaURLs = %v; want only the https URL", post.MediaURLs)
	}
}

func TestExtract_UnparseableCounts_StayNil(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/erin" role="link">Erin</a>@erin</div>
		<a href="/erin/status/1790000000000000010" role="link">permalink</a>
		<button data-testid="like" aria-label="Like"><span></span></button>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if post.Likes != nil {
		t.Fatalf("unreadable count must stay nil, got %d", *post.Likes)
	}
	if post.Replies != nil || post.Reposts != nil {
		t.Fatalf("absent buttons must yield nil counts")
	}
}

func TestExtract_BadTimestamp_StaysNil(t *testing.T) {
	html := `<article data-testid="tweet">
		<div data-testid="User-Name"><a href="/erin" role="link">Erin</a>@erin</div>
		<a href="/erin/status/1790000000000000011" role="link"><time datetime="yesterday-ish">?</time></a>
	</article>`

	post := testEngine().Extract(firstArticle(t, html))
	if post == nil {
		t.Fatalf("expected a post, got nil")
	}
	if post.PostedAt != nil {
		t.Fatalf("unparseable datetime must stay nil, got %v", post.PostedAt)
	}
}

func TestArticlesFromHTML_MultipleArticles(t *testing.T) {
	html := `<main>
		<article data-testid="tweet"><a href="/a/status/1" role="link">x</a></article>
		<div>interleaved chrome</div>
		<article data-testid="tweet"><a href="/b/status/2" role="link">y</a></article>
		<article data-testid="other">not a tweet</article>
	</main>`

	articles, err := ArticlesFromHTML(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 feed articles, got %d", len(articles))
	}

	eng := testEngine()
	first := eng.Extract(articles[0])
	second := eng.Extract(articles[1])
	if first == nil || second == nil {
		t.Fatalf("expected both articles to extract")
	}
	if first.ExternalID != "1" || second.ExternalID != "2" {
		t.Fatalf("document order lost: %q then %q", first.ExternalID, second.ExternalID)
	}
}
