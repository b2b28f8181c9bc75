package meili

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	meilisearch "github.com/meilisearch/meilisearch-go"

	"github.com/restitch/internal/sources"
	"github.com/restitch/pkg/models"
)

const (
	defaultCommentIndex = "comments"
	defaultPostIndex    = "submissions"
)

// Config holds the connection settings for a self-hosted Meilisearch archive.
// The comment index must have link_id and created_utc filterable and
// created_utc sortable.
type Config struct {
	URL       string
	APIKey    string
	Index     string
	PostIndex string
}

// Client is the archival adapter backed by a Meilisearch instance instead of
// the public search API. Useful when the thread corpus is self-archived.
type Client struct {
	manager      meilisearch.ServiceManager
	commentIndex string
	postIndex    string
}

// New creates a Meilisearch-backed archival client.
func New(cfg Config) *Client {
	manager := meilisearch.New(cfg.URL, meilisearch.WithAPIKey(cfg.APIKey))

	commentIndex := cfg.Index
	if commentIndex == "" {
		commentIndex = defaultCommentIndex
	}
	postIndex := cfg.PostIndex
	if postIndex == "" {
		postIndex = defaultPostIndex
	}

	return &Client{
		manager:      manager,
		commentIndex: commentIndex,
		postIndex:    postIndex,
	}
}

func (c *Client) Name() string { return "meilisearch" }

// GetPost looks the submission up by id. Returns ErrNotFound when the index
// never captured it.
func (c *Client) GetPost(ctx context.Context, threadID string) (*models.Post, error) {
	resp, err := c.manager.Index(c.postIndex).SearchWithContext(ctx, "", &meilisearch.SearchRequest{
		Filter: fmt.Sprintf("id = %q", threadID),
		Limit:  1,
	})
	if err != nil {
		return nil, &sources.TransientError{Source: c.Name(), Err: err}
	}
	if len(resp.Hits) == 0 {
		return nil, sources.ErrNotFound
	}

	hit := resp.Hits[0]
	return &models.Post{
		ID:          decodeString(hit, "id"),
		Title:       decodeString(hit, "title"),
		Author:      decodeString(hit, "author"),
		Body:        decodeString(hit, "selftext"),
		URL:         decodeString(hit, "url"),
		CreatedUTC:  decodeInt64(hit, "created_utc"),
		Score:       int(decodeInt64(hit, "score")),
		NumComments: int(decodeInt64(hit, "num_comments")),
	}, nil
}

// GetCommentsPage fetches one page of the thread's comments inside
// (after, before), ascending by created_utc.
func (c *Client) GetCommentsPage(ctx context.Context, threadID string, maxItems int, after, before int64) ([]*models.Comment, error) {
	filters := []string{fmt.Sprintf("link_id = %q", threadID)}
	if after >= 0 {
		filters = append(filters, fmt.Sprintf("created_utc > %d", after))
	}
	if before > 0 {
		filters = append(filters, fmt.Sprintf("created_utc < %d", before))
	}

	resp, err := c.manager.Index(c.commentIndex).SearchWithContext(ctx, "", &meilisearch.SearchRequest{
		Filter: filters,
		Sort:   []string{"created_utc:asc"},
		Limit:  int64(maxItems),
	})
	if err != nil {
		return nil, &sources.TransientError{Source: c.Name(), Err: err}
	}

	comments := make([]*models.Comment, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		comments = append(comments, hitToComment(hit, threadID))
	}

	// Sorting is requested from the server, but the core depends on it.
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedUTC < comments[j].CreatedUTC
	})

	return comments, nil
}

func hitToComment(hit meilisearch.Hit, threadID string) *models.Comment {
	linkID := trimFullname(decodeString(hit, "link_id"))
	if linkID == "" {
		linkID = threadID
	}

	parentID := trimFullname(decodeString(hit, "parent_id"))
	if parentID == "" || parentID == linkID {
		parentID = linkID
	}

	return &models.Comment{
		ID:         decodeString(hit, "id"),
		ParentID:   parentID,
		ThreadID:   linkID,
		Author:     decodeString(hit, "author"),
		Body:       decodeString(hit, "body"),
		CreatedUTC: decodeInt64(hit, "created_utc"),
		Score:      int(decodeInt64(hit, "score")),
	}
}

func decodeString(hit meilisearch.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt64(hit meilisearch.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	return 0
}

func trimFullname(id string) string {
	if len(id) > 3 && id[0] == 't' && id[2] == '_' {
		return id[3:]
	}
	return id
}
