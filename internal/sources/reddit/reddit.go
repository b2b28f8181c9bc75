package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/restitch/internal/sources"
	"github.com/restitch/pkg/models"
)

const (
	defaultBaseURL   = "https://api.reddit.com"
	defaultUserAgent = "restitch"

	// The comment permalink endpoint caps context at 8 ancestors.
	maxContextDepth = 8
)

// Config holds the connection settings for the live API.
type Config struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client is the live-source adapter for the reddit JSON API.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// New creates a live client with request pacing applied to every call.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Client) Name() string { return "reddit" }

// redditListing is the standard API envelope.
type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

type redditComment struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id"`
	LinkID     string  `json:"link_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	// edited is false or an epoch float, never both shapes at once
	Edited  any             `json:"edited"`
	Replies json.RawMessage `json:"replies"`
}

// GetPost fetches the submission by thread id.
func (c *Client) GetPost(ctx context.Context, threadID string) (*models.Post, error) {
	requestURL := fmt.Sprintf("%s/api/info.json?id=%s", c.baseURL, url.QueryEscape("t3_"+threadID))

	var listing redditListing
	if err := c.get(ctx, requestURL, &listing); err != nil {
		return nil, err
	}

	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var rp redditPost
		if err := json.Unmarshal(child.Data, &rp); err != nil {
			return nil, fmt.Errorf("failed to decode post: %w", err)
		}
		return convertPost(&rp), nil
	}

	return nil, &sources.StatusError{Status: http.StatusNotFound, URL: requestURL, Body: "post not in listing"}
}

// GetComments batch-looks-up comments by short id. Ids the platform cannot
// resolve are silently absent from the result.
func (c *Client) GetComments(ctx context.Context, ids []string) ([]*models.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	fullnames := make([]string, len(ids))
	for i, id := range ids {
		fullnames[i] = "t1_" + id
	}
	requestURL := fmt.Sprintf("%s/api/info.json?id=%s", c.baseURL, url.QueryEscape(strings.Join(fullnames, ",")))

	var listing redditListing
	if err := c.get(ctx, requestURL, &listing); err != nil {
		return nil, err
	}

	comments := make([]*models.Comment, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var rc redditComment
		if err := json.Unmarshal(child.Data, &rc); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		comments = append(comments, convertComment(&rc))
	}

	return comments, nil
}

// GetAncestorChain walks the permalink context listing down to commentID and
// returns the ancestors passed on the way, furthest ancestor first.
func (c *Client) GetAncestorChain(ctx context.Context, threadID, commentID string, depth int) ([]*models.Comment, error) {
	if depth <= 0 {
		return nil, nil
	}
	if depth > maxContextDepth {
		depth = maxContextDepth
	}

	requestURL := fmt.Sprintf("%s/comments/%s/_/%s.json?context=%d&limit=%d",
		c.baseURL, url.PathEscape(threadID), url.PathEscape(commentID), depth, depth+1)

	// The permalink endpoint answers with two listings: the post, then the
	// comment chain rooted at the furthest fetched ancestor.
	var payload []redditListing
	if err := c.get(ctx, requestURL, &payload); err != nil {
		return nil, err
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("unexpected permalink response shape")
	}

	var chain []*models.Comment
	children := payload[1].Data.Children
	for len(children) > 0 {
		child := children[0]
		if child.Kind != "t1" {
			break
		}
		var rc redditComment
		if err := json.Unmarshal(child.Data, &rc); err != nil {
			return nil, fmt.Errorf("failed to decode ancestor: %w", err)
		}
		if rc.ID == commentID {
			break
		}
		chain = append(chain, convertComment(&rc))

		var replies redditListing
		if len(rc.Replies) == 0 || json.Unmarshal(rc.Replies, &replies) != nil {
			break
		}
		children = replies.Data.Children
	}

	return chain, nil
}

func (c *Client) get(ctx context.Context, requestURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &sources.TransientError{Source: c.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &sources.TransientError{Source: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return sources.WrapStatus(c.Name(), resp.StatusCode, requestURL, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// convertComment maps a wire comment to the canonical model, stripping the
// t1_/t3_ fullname prefixes so the core only sees short ids.
func convertComment(rc *redditComment) *models.Comment {
	threadID := trimFullname(rc.LinkID)
	parentID := trimFullname(rc.ParentID)
	if strings.HasPrefix(rc.ParentID, "t3_") {
		parentID = threadID
	}

	return &models.Comment{
		ID:         rc.ID,
		ParentID:   parentID,
		ThreadID:   threadID,
		Author:     rc.Author,
		Body:       rc.Body,
		CreatedUTC: int64(rc.CreatedUTC),
		Score:      rc.Score,
		Edited:     editedTimestamp(rc.Edited),
	}
}

func convertPost(rp *redditPost) *models.Post {
	return &models.Post{
		ID:          rp.ID,
		Title:       rp.Title,
		Author:      rp.Author,
		Body:        rp.SelfText,
		URL:         rp.URL,
		CreatedUTC:  int64(rp.CreatedUTC),
		Score:       rp.Score,
		NumComments: rp.NumComments,
	}
}

func trimFullname(fullname string) string {
	if i := strings.IndexByte(fullname, '_'); i >= 0 && i <= 2 {
		return fullname[i+1:]
	}
	return fullname
}

func editedTimestamp(edited any) int64 {
	if ts, ok := edited.(float64); ok {
		return int64(ts)
	}
	return 0
}
