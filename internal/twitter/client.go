// Package twitter is a minimal client for the X API v2 endpoints the
// monitor consumes: handle resolution and recent-timeline listing.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// supersetResults is how many tweets each timeline request asks for;
// more than callers need, so local content-type filtering still leaves
// enough to truncate down from.
const supersetResults = 10

// CallTracker counts outbound API calls. Satisfied by *quota.Tracker.
type CallTracker interface {
	TrackCall(info *types.RateLimitInfo)
}

// Client calls the X API v2 with bearer-token auth, pacing requests
// through a token bucket so bursts never land on the provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	tracker    CallTracker
	ids        *UserIDCache
	now        func() time.Time
}

// New creates a Client. tracker may be nil (calls are not counted); ids
// may be nil (every lookup hits the API).
func New(cfg config.TwitterConfig, tracker CallTracker, ids *UserIDCache) *Client {
	interval := time.Duration(cfg.MinCallIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.BearerToken,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		tracker:    tracker,
		ids:        ids,
		now:        time.Now,
	}
}

type apiUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type userResponse struct {
	Data   *apiUser        `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type timelineTweet struct {
	ID               string              `json:"id"`
	Text             string              `json:"text"`
	CreatedAt        time.Time           `json:"created_at"`
	Lang             string              `json:"lang"`
	PublicMetrics    types.PublicMetrics `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	Entities *struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
	} `json:"entities"`
}

type timelineResponse struct {
	Data []timelineTweet `json:"data"`
	Meta *struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

// UserID resolves a handle to its numeric user id, consulting the
// persistent cache first. Returns ErrUserNotFound for handles the
// provider does not know.
func (c *Client) UserID(ctx context.Context, handle string) (string, error) {
	if c.ids != nil {
		if id, ok := c.ids.Get(handle); ok {
			return id, nil
		}
	}

	var out userResponse
	if _, err := c.getJSON(ctx, "/2/users/by/username/"+url.PathEscape(handle), nil, &out); err != nil {
		return "", err
	}

	// The provider reports unknown users as a 200 with an errors array
	// and no data object.
	if out.Data == nil || out.Data.ID == "" {
		return "", ErrUserNotFound
	}

	if c.ids != nil {
		c.ids.Put(handle, out.Data.ID)
	}
	return out.Data.ID, nil
}

// RecentTweets fetches the account's most recent tweets, filters out
// excluded content types locally, and truncates to count. An unknown
// handle or an empty timeline yields an empty slice and no error.
func (c *Client) RecentTweets(ctx context.Context, handle string, count int, includeReplies, includeRetweets bool) ([]types.CachedTweet, error) {
	id, err := c.UserID(ctx, handle)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(supersetResults))
	q.Set("tweet.fields", "id,text,created_at,public_metrics,entities,referenced_tweets,lang")
	if !includeReplies {
		q.Set("exclude", "replies")
	}

	var out timelineResponse
	if _, err := c.getJSON(ctx, "/2/users/"+id+"/tweets", q, &out); err != nil {
		return nil, err
	}

	if out.Data == nil {
		if out.Meta != nil && out.Meta.ResultCount == 0 {
			return nil, nil
		}
		// Anything other than the documented shape is a parse error,
		// not a case to probe around.
		return nil, fmt.Errorf("twitter: unrecognized timeline response shape for @%s", handle)
	}

	fetchedAt := c.now().UTC()
	tweets := make([]types.CachedTweet, 0, count)
	for _, tw := range out.Data {
		if !includeRetweets && isRetweet(tw) {
			continue
		}
		tweets = append(tweets, transformTweet(handle, tw, fetchedAt))
		if len(tweets) == count {
			break
		}
	}

	return tweets, nil
}

// CheckRateLimits probes the current rate-limit state with a cheap
// authenticated call. The metadata is returned even when the call
// itself is rejected.
func (c *Client) CheckRateLimits(ctx context.Context) (*types.RateLimitInfo, error) {
	var out userResponse
	info, err := c.getJSON(ctx, "/2/users/me", nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RateLimit != nil {
			return apiErr.RateLimit, err
		}
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("twitter: response carried no rate-limit metadata")
	}
	return info, nil
}

func isRetweet(tw timelineTweet) bool {
	for _, ref := range tw.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}

// transformTweet shapes an API tweet into its cached form, computing
// the derived engagement fields.
func transformTweet(handle string, tw timelineTweet, fetchedAt time.Time) types.CachedTweet {
	m := tw.PublicMetrics

	// Weighted engagement score: retweets 1.5, quotes 1.2, replies 1.0,
	// likes 0.8.
	score := 1.5*float64(m.RetweetCount) +
		1.2*float64(m.QuoteCount) +
		1.0*float64(m.ReplyCount) +
		0.8*float64(m.LikeCount)

	var tags []string
	if tw.Entities != nil {
		for _, h := range tw.Entities.Hashtags {
			tags = append(tags, h.Tag)
		}
	}

	return types.CachedTweet{
		TweetID:         tw.ID,
		Text:            tw.Text,
		URL:             fmt.Sprintf("https://twitter.com/%s/status/%s", handle, tw.ID),
		CreatedAt:       tw.CreatedAt,
		FetchedAt:       fetchedAt,
		EngagementScore: score,
		Summary:         summarize(tw.Text),
		VibeTags:        tags,
		PublicMetrics:   m,
	}
}

// summarize truncates text to 50 runes with an ellipsis.
func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= 50 {
		return text
	}
	return string(runes[:50]) + "..."
}

// getJSON performs one paced, authenticated GET and decodes the body
// into out. Each invocation is exactly one outbound network call and is
// reported to the tracker exactly once, success or not.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (*types.RateLimitInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("twitter: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: request failed: %w", err)
	}
	defer resp.Body.Close()

	info := parseRateLimit(resp.Header)
	if c.tracker != nil {
		c.tracker.TrackCall(info)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("twitter: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return info, &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
			RateLimit:  info,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return info, fmt.Errorf("twitter: decoding response: %w", err)
	}
	return info, nil
}

// parseRateLimit extracts rate-limit metadata from response headers.
// Returns nil when the response carried none.
func parseRateLimit(h http.Header) *types.RateLimitInfo {
	if h.Get("x-rate-limit-limit") == "" && h.Get("x-app-limit-24hour-limit") == "" {
		return nil
	}

	info := &types.RateLimitInfo{
		Limit:     headerInt(h, "x-rate-limit-limit"),
		Remaining: headerInt(h, "x-rate-limit-remaining"),
		Reset:     headerInt64(h, "x-rate-limit-reset"),
	}

	if h.Get("x-app-limit-24hour-limit") != "" {
		info.Day = &types.DayLimit{
			Limit:     headerInt(h, "x-app-limit-24hour-limit"),
			Remaining: headerInt(h, "x-app-limit-24hour-remaining"),
			Reset:     headerInt64(h, "x-app-limit-24hour-reset"),
		}
	}
	return info
}

// apiErrorMessage pulls the most specific message out of an error body.
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, e := range parsed.Errors {
			if e.Message != "" {
				return e.Message
			}
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Title != "" {
			return parsed.Title
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func headerInt(h http.Header, key string) int {
	n, _ := strconv.Atoi(h.Get(key))
	return n
}

func headerInt64(h http.Header, key string) int64 {
	n, _ := strconv.ParseInt(h.Get(key), 10, 64)
	return n
}
