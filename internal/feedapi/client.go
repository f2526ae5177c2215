// Package feedapi fetches the home timeline over the platform's HTTP API.
// It is the acquisition alternative for tenants whose feed source is "api":
// no browser, no session profile, just a bearer token. Responses are mapped
// to the same canonical post shape the scraper produces, so everything
// downstream of acquisition is source-agnostic.
package feedapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/domain"
)

// ErrUnauthorized means the bearer token was rejected. Callers treat it the
// way the scraper treats an expired login: the run stops and the tenant is
// asked for fresh credentials.
var ErrUnauthorized = errors.New("feed api token rejected")

// Client is a rate-limited bearer-token client for the feed API. The HTTP
// client is shared, injected state; the limiter and the cached account id
// are per-Client.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration

	mu     sync.Mutex
	selfID string
}

// NewClient builds a Client from config. Pass the process-wide HTTP client;
// a nil httpClient falls back to a private one with a 15s timeout.
func NewClient(cfg config.FeedAPIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Limit(cfg.RateRPS)
	if cfg.RateRPS <= 0 {
		limit = rate.Inf
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		bearerToken: cfg.BearerToken,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		maxAttempts: max(cfg.MaxAttempts, 1),
		baseBackoff: cfg.BaseBackoff,
	}
}

func (c *Client) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// Timeline returns up to limit posts from the authenticated account's home
// timeline, newest first, mapped to the canonical post shape. Engagement
// counts stay nil when the API omits public metrics; absent data is not
// zero data.
func (c *Client) Timeline(ctx context.Context, limit int) ([]domain.FeedPost, error) {
	id, err := c.self(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf(
		"%s/users/%s/timelines/reverse_chronological?max_results=%d"+
			"&tweet.fields=created_at,public_metrics,referenced_tweets,in_reply_to_user_id,attachments"+
			"&expansions=author_id,referenced_tweets.id,attachments.media_keys"+
			"&user.fields=username,name&media.fields=url,preview_image_url",
		c.baseURL, url.PathEscape(id), clamp(limit, 5, 100))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusErr(resp.StatusCode); err != nil {
		return nil, err
	}

	var raw struct {
		Data []struct {
			ID              string     `json:"id"`
			Text            string     `json:"text"`
			AuthorID        string     `json:"author_id"`
			CreatedAt       *time.Time `json:"created_at"`
			InReplyToUserID string     `json:"in_reply_to_user_id"`
			PublicMetrics   *struct {
				LikeCount    int `json:"like_count"`
				ReplyCount   int `json:"reply_count"`
				RetweetCount int `json:"retweet_count"`
			} `json:"public_metrics"`
			ReferencedTweets []struct {
				Type string `json:"type"`
				ID   string `json:"id"`
			} `json:"referenced_tweets"`
			Attachments *struct {
				MediaKeys []string `json:"media_keys"`
			} `json:"attachments"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
				Name     string `json:"name"`
			} `json:"users"`
			Tweets []struct {
				ID       string `json:"id"`
				AuthorID string `json:"author_id"`
			} `json:"tweets"`
			Media []struct {
				MediaKey        string `json:"media_key"`
				URL             string `json:"url"`
				PreviewImageURL string `json:"preview_image_url"`
			} `json:"media"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}

	users := make(map[string]struct{ handle, name string }, len(raw.Includes.Users))
	for _, u := range raw.Includes.Users {
		users[u.ID] = struct{ handle, name string }{u.Username, u.Name}
	}
	refAuthors := make(map[string]string, len(raw.Includes.Tweets))
	for _, t := range raw.Includes.Tweets {
		refAuthors[t.ID] = t.AuthorID
	}
	media := make(map[string]string, len(raw.Includes.Media))
	for _, m := range raw.Includes.Media {
		u := m.URL
		if u == "" {
			u = m.PreviewImageURL
		}
		if u != "" {
			media[m.MediaKey] = u
		}
	}

	out := make([]domain.FeedPost, 0, len(raw.Data))
	for _, d := range raw.Data {
		if d.ID == "" {
			continue
		}
		post := domain.FeedPost{
			ExternalID: d.ID,
			Content:    d.Text,
			PostedAt:   d.CreatedAt,
		}
		if u, ok := users[d.AuthorID]; ok {
			post.AuthorHandle = u.handle
			post.AuthorName = u.name
		}
		if m := d.PublicMetrics; m != nil {
			likes, reposts, replies := m.LikeCount, m.RetweetCount, m.ReplyCount
			post.Likes, post.Reposts, post.Replies = &likes, &reposts, &replies
		}
		for _, ref := range d.ReferencedTweets {
			switch ref.Type {
			case "retweeted":
				post.IsRepost = true
				if u, ok := users[refAuthors[ref.ID]]; ok {
					post.RepostOfAuthor = u.handle
				}
			case "replied_to":
				post.IsReply = true
			}
		}
		if d.InReplyToUserID != "" {
			post.IsReply = true
			if u, ok := users[d.InReplyToUserID]; ok {
				post.ReplyToHandle = u.handle
			}
		}
		if d.Attachments != nil {
			for _, key := range d.Attachments.MediaKeys {
				if u, ok := media[key]; ok {
					post.MediaURLs = append(post.MediaURLs, u)
				}
			}
		}
		out = append(out, post)
	}
	return out, nil
}

// self resolves and caches the authenticated account id. Serialized so
// concurrent first calls produce one lookup.
func (c *Client) self(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selfID != "" {
		return c.selfID, nil
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/me", nil)
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := statusErr(resp.StatusCode); err != nil {
		return "", err
	}

	var raw struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode account: %w", err)
	}
	if raw.Data.ID == "" {
		return "", errors.New("feed api returned no account id")
	}
	c.selfID = raw.Data.ID
	return c.selfID, nil
}

func statusErr(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code >= 400:
		return fmt.Errorf("feed api status %d", code)
	default:
		return nil
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// doWithRetry retries rate-limited and server-side failures with exponential
// backoff, honoring Retry-After when present, with +/-20% jitter so parallel
// clients do not re-dogpile the API on the same tick.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode < 500 || resp.StatusCode > 599) {
				return resp, nil
			}
			ra := resp.Header.Get("Retry-After")
			_ = resp.Body.Close()
			wait := backoff
			if ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				} else if t, err := http.ParseTime(ra); err == nil {
					if d := time.Until(t); d > 0 {
						wait = d
					}
				}
			}
			if jitter := time.Duration(float64(wait) * 0.2); jitter > 0 {
				wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			continue
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}
