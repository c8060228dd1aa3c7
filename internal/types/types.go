package types

import "time"

// Account is a monitored X account
type Account struct {
	ID          int64      `json:"id"`
	Handle      string     `json:"handle"`
	Platform    string     `json:"platform"`
	Priority    int        `json:"priority"` // 1 (most important) .. 5
	LastChecked *time.Time `json:"last_checked"`
}

// PublicMetrics holds the raw engagement counters reported by the API
type PublicMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

// CachedTweet is one cached tweet belonging to a monitored account
type CachedTweet struct {
	ID              int64         `json:"id"`
	AccountID       int64         `json:"account_id"`
	TweetID         string        `json:"tweet_id"`
	Text            string        `json:"tweet_text"`
	URL             string        `json:"tweet_url"`
	CreatedAt       time.Time     `json:"created_at"`
	FetchedAt       time.Time     `json:"fetched_at"`
	EngagementScore float64       `json:"engagement_score"`
	Summary         string        `json:"summary"`
	VibeTags        []string      `json:"vibe_tags"`
	PublicMetrics   PublicMetrics `json:"public_metrics"`
}

// ReviewStatus is the operator triage state of a review entry
type ReviewStatus string

const (
	ReviewPending ReviewStatus = "pending"
	ReviewFixed   ReviewStatus = "fixed"
	ReviewIgnored ReviewStatus = "ignored"
)

// Valid reports whether s is one of the known triage states.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewFixed, ReviewIgnored:
		return true
	}
	return false
}

// ReviewEntry records an account that permanently failed fetching,
// awaiting human triage via the dashboard.
type ReviewEntry struct {
	ID           int64        `json:"id"`
	Handle       string       `json:"handle"`
	ErrorMessage string       `json:"error_message"`
	ErrorCode    string       `json:"error_code"`
	Status       ReviewStatus `json:"status"`
	Notes        string       `json:"notes"`
	CreatedAt    time.Time    `json:"created_at"`
}

// DayLimit is the provider's 24-hour app-level call budget
type DayLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"` // epoch seconds
}

// RateLimitInfo is the rate-limit metadata carried on API responses
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     int64     `json:"reset"` // epoch seconds
	Day       *DayLimit `json:"day,omitempty"`
}
