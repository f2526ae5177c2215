package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// Feed view selectors. The platform offers no stable DOM contract; the
// data-testid attributes are the closest thing to one and survive most
// layout shuffles.
const (
	selArticle       = "article[data-testid='tweet']"
	selTweetText     = "[data-testid='tweetText']"
	selSocialContext = "[data-testid='socialContext']"
	selUserName      = "[data-testid='User-Name']"
	selPhoto         = "[data-testid='tweetPhoto'] img"
	selPermalink     = "a[href*='/status/']"
	selTimestamp     = "time"
	selReplyButton   = "[data-testid='reply']"
	selRepostButton  = "[data-testid='retweet']"
	selLikeButton    = "[data-testid='like']"
	selProfileLink   = "a[href^='/'][role='link']"
	selComposeButton = "[data-testid='SideNav_NewTweet_Button']"
)

// SelCompose exposes the compose-button selector for the session check done
// by the acquisition layer.
const SelCompose = selComposeButton

var (
	statusIDRe = regexp.MustCompile(`/status/(\d+)`)
	handleRe   = regexp.MustCompile(`@(\w+)`)
)

// repostMarkers are the social-context phrases that mark an amplified post,
// covering the UI languages the browser profiles run under.
var repostMarkers = []string{"reposted", "retweeted", "hat repostet", "erneut gepostet"}

// replyMarkers are the "replying to" annotations, same language set.
var replyMarkers = []string{"replying to", "in reply to", "antwort an", "als antwort"}

// nonProfilePaths are single-segment hrefs that look like profile links but
// lead to app chrome instead of a user.
var nonProfilePaths = map[string]struct{}{
	"search": {}, "explore": {}, "home": {}, "notifications": {},
	"messages": {}, "compose": {}, "settings": {}, "i": {},
}

// Engine extracts one FeedPost per rendered article. Extraction is
// identity-first: without an external id the item is discarded outright,
// since every downstream dedup decision keys on that id. Everything else is
// best-effort; a failed sub-extraction leaves its field empty and never
// aborts the item, let alone the batch.
type Engine struct {
	Log zerolog.Logger
}

// Extract parses one rendered article into a FeedPost, or nil when the item
// carries no resolvable external id. It never panics outward: an unexpected
// failure inside any sub-extraction drops the single item at debug level.
func (e *Engine) Extract(article ArticleHandle) (post *domain.FeedPost) {
	defer func() {
		if r := recover(); r != nil {
			post = nil
			e.Log.Debug().Interface("cause", r).Msg("article extraction aborted; item dropped")
		}
	}()

	id := externalID(article)
	if id == "" {
		e.Log.Debug().Msg("article has no status permalink; item dropped")
		return nil
	}

	p := &domain.FeedPost{ExternalID: id}

	p.Content = bodyText(article)
	p.IsRepost = isRepost(article)

	author, repostOf := resolveAuthors(article, p.IsRepost)
	p.AuthorHandle = author
	p.RepostOfAuthor = repostOf
	p.AuthorName = displayName(article)

	p.Replies = buttonCount(article, selReplyButton)
	p.Reposts = buttonCount(article, selRepostButton)
	p.Likes = buttonCount(article, selLikeButton)

	p.MediaURLs = mediaURLs(article)
	p.PostedAt = postedAt(article)

	p.IsReply, p.ReplyToHandle = detectReply(article, p.AuthorHandle)

	return p
}

// externalID resolves the platform id from the first status permalink.
func externalID(article ArticleHandle) string {
	for _, link := range article.FindAll(selPermalink) {
		href, ok := link.Attr("href")
		if !ok {
			continue
		}
		if m := statusIDRe.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	return ""
}

func bodyText(article ArticleHandle) string {
	h, ok := article.FindFirst(selTweetText)
	if !ok {
		return ""
	}
	return strings.TrimSpace(h.Text())
}

// isRepost checks the social-context annotation above the article body.
func isRepost(article ArticleHandle) bool {
	h, ok := article.FindFirst(selSocialContext)
	if !ok {
		return false
	}
	ctx := strings.ToLower(h.Text())
	for _, marker := range repostMarkers {
		if strings.Contains(ctx, marker) {
			return true
		}
	}
	return false
}

// resolveAuthors walks the article's profile links in document order. The
// first link is normally the author. On a repost the first link belongs to
// whoever amplified the post, so when a second distinct handle exists the
// pair is reattributed: first link becomes the amplifier, second the author.
func resolveAuthors(article ArticleHandle, repost bool) (author, repostOf string) {
	var handles []string
	seen := map[string]struct{}{}
	for _, link := range article.FindAll(selProfileLink) {
		h := profileHandle(link)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		handles = append(handles, h)
	}

	if len(handles) == 0 {
		return "", ""
	}
	author = handles[0]
	if repost && len(handles) > 1 {
		repostOf = handles[0]
		author = handles[1]
	}
	return author, repostOf
}

// profileHandle reduces a link to a profile handle, or "" when the href is
// navigation chrome or a multi-segment path (permalinks, media pages).
func profileHandle(link ArticleHandle) string {
	href, ok := link.Attr("href")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	h := strings.Trim(href, "/")
	if h == "" || strings.Contains(h, "/") {
		return ""
	}
	if _, excluded := nonProfilePaths[strings.ToLower(h)]; excluded {
		return ""
	}
	return h
}

// displayName reads the author's display name from the first User-Name
// block, which renders "Name@handle·age" as one text run.
func displayName(article ArticleHandle) string {
	h, ok := article.FindFirst(selUserName)
	if !ok {
		return ""
	}
	name := h.Text()
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, "·"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// buttonCount reads one engagement metric. The accessibility label carries
// the exact number and wins; the compact on-screen text ("1.2K") is the
// fallback. nil when neither yields a count.
func buttonCount(article ArticleHandle, selector string) *int {
	h, ok := article.FindFirst(selector)
	if !ok {
		return nil
	}
	if label, ok := h.Attr("aria-label"); ok {
		if c := leadingCount(label); c != nil {
			return c
		}
	}
	return ParseCompactCount(h.Text())
}

func mediaURLs(article ArticleHandle) []string {
	var urls []string
	for _, img := range article.FindAll(selPhoto) {
		src, ok := img.Attr("src")
		if !ok {
			continue
		}
		if validMediaURL(src) {
			urls = append(urls, src)
		}
	}
	return urls
}

// validMediaURL accepts absolute http(s) URLs with a host. Everything else
// (data URIs, relative paths, garbage) is dropped silently.
func validMediaURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func postedAt(article ArticleHandle) *time.Time {
	h, ok := article.FindFirst(selTimestamp)
	if !ok {
		return nil
	}
	v, ok := h.Attr("datetime")
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// detectReply combines two independent signals: an explicit "replying to"
// annotation whose target differs from the author (which also yields the
// addressee), and the presence of more than one author-name block, which is
// how a rendered parent-plus-reply thread looks. Either alone marks a reply.
func detectReply(article ArticleHandle, author string) (bool, string) {
	text := strings.ToLower(article.Text())
	for _, marker := range replyMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		tail := text[idx+len(marker):]
		if m := handleRe.FindStringSubmatch(tail); m != nil && !strings.EqualFold(m[1], author) {
			return true, m[1]
		}
	}

	return len(article.FindAll(selUserName)) > 1, ""
}
