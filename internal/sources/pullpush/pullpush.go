package pullpush

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/restitch/internal/sources"
	"github.com/restitch/pkg/models"
)

const defaultBaseURL = "https://api.pullpush.io"

// Config holds the connection settings for the archival search API.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the archival adapter for a pushshift-compatible search API.
// Range queries are strict on both ends: after means created_utc > after,
// before means created_utc < before.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates an archival client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "pullpush" }

type searchResponse struct {
	Data []archiveComment `json:"data"`
}

type archiveComment struct {
	ID         string  `json:"id"`
	LinkID     string  `json:"link_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	// parent_id is a fullname string in recent dumps and a bare number in
	// very old ones, so it is normalized after decoding
	ParentID json.RawMessage `json:"parent_id"`
}

type submissionResponse struct {
	Data []archiveSubmission `json:"data"`
}

type archiveSubmission struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// GetPost looks the submission up in the archive. Returns ErrNotFound when
// the index never captured it.
func (c *Client) GetPost(ctx context.Context, threadID string) (*models.Post, error) {
	values := url.Values{}
	values.Set("ids", threadID)
	requestURL := fmt.Sprintf("%s/reddit/submission/search?%s", c.baseURL, values.Encode())

	var resp submissionResponse
	if err := c.get(ctx, requestURL, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, sources.ErrNotFound
	}

	s := resp.Data[0]
	return &models.Post{
		ID:          s.ID,
		Title:       s.Title,
		Author:      s.Author,
		Body:        s.SelfText,
		URL:         s.URL,
		CreatedUTC:  int64(s.CreatedUTC),
		Score:       s.Score,
		NumComments: s.NumComments,
	}, nil
}

// GetCommentsPage fetches one page of the thread's comments inside
// (after, before), ascending by created_utc.
func (c *Client) GetCommentsPage(ctx context.Context, threadID string, maxItems int, after, before int64) ([]*models.Comment, error) {
	values := url.Values{}
	values.Set("link_id", threadID)
	values.Set("size", strconv.Itoa(maxItems))
	values.Set("sort", "asc")
	values.Set("sort_type", "created_utc")
	if after >= 0 {
		values.Set("after", strconv.FormatInt(after, 10))
	}
	if before > 0 {
		values.Set("before", strconv.FormatInt(before, 10))
	}
	requestURL := fmt.Sprintf("%s/reddit/comment/search?%s", c.baseURL, values.Encode())

	var resp searchResponse
	if err := c.get(ctx, requestURL, &resp); err != nil {
		return nil, err
	}

	comments := make([]*models.Comment, 0, len(resp.Data))
	for i := range resp.Data {
		comments = append(comments, convertComment(&resp.Data[i], threadID))
	}

	// The core depends on ascending order; the API has been known to drift.
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedUTC < comments[j].CreatedUTC
	})

	return comments, nil
}

func (c *Client) get(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

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

func convertComment(ac *archiveComment, threadID string) *models.Comment {
	linkID := strings.TrimPrefix(ac.LinkID, "t3_")
	if linkID == "" {
		linkID = threadID
	}

	return &models.Comment{
		ID:         ac.ID,
		ParentID:   normalizeParent(ac.ParentID, linkID),
		ThreadID:   linkID,
		Author:     ac.Author,
		Body:       ac.Body,
		CreatedUTC: int64(ac.CreatedUTC),
		Score:      ac.Score,
	}
}

// normalizeParent reduces the archive's parent_id shapes to a short id,
// defaulting to the thread id when the field is absent or points at the
// submission.
func normalizeParent(raw json.RawMessage, threadID string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return threadID
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.HasPrefix(s, "t3_") || s == "" {
			return threadID
		}
		return strings.TrimPrefix(s, "t1_")
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 36)
	}

	return threadID
}
