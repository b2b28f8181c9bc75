package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restitch/internal/config"
	"github.com/restitch/internal/recon"
	"github.com/restitch/internal/sources"
	"github.com/restitch/internal/view"
	"github.com/restitch/pkg/models"
)

type stubService struct {
	lastReq view.LoadRequest
	tv      *view.ThreadView
	err     error
}

func (s *stubService) LoadThread(ctx context.Context, req view.LoadRequest) (*view.ThreadView, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.tv, nil
}

func threadView(threadID string) *view.ThreadView {
	return &view.ThreadView{
		Post:     &models.Post{ID: threadID, Title: "thread"},
		Comments: []*models.Comment{},
		Stats:    recon.Stats{},
	}
}

func newTestServer(t *testing.T, svc ThreadService, authSecret string) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 8390
	cfg.Server.AuthSecret = authSecret
	cfg.Server.CORSOrigins = []string{"*"}
	return NewServer(cfg, svc, zerolog.Nop())
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubService{}, "")

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubService{}, "")

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetThread_PassesQueryParams(t *testing.T) {
	svc := &stubService{tv: threadView("thr1")}
	srv := newTestServer(t, svc, "")

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1?target=50&at=c9&all=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view.LoadRequest{
		ThreadID:  "thr1",
		CommentID: "c9",
		Target:    50,
		All:       true,
	}, svc.lastReq)

	var tv view.ThreadView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tv))
	assert.Equal(t, "thr1", tv.Post.ID)
}

func TestGetThread_RejectsBadParams(t *testing.T) {
	srv := newTestServer(t, &stubService{tv: threadView("thr1")}, "")

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1?target=soon", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1?target=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1?all=perhaps", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetThread_MapsLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"forbidden", &sources.StatusError{Status: 403, Body: "quarantined"}, http.StatusForbidden},
		{"missing thread", &sources.StatusError{Status: 404}, http.StatusNotFound},
		{"missing comment", fmt.Errorf("comment c9: %w", sources.ErrNotFound), http.StatusNotFound},
		{"foreign anchor", &recon.LinkMismatchError{CommentID: "c9", Want: "thr1", Got: "thr2"}, http.StatusBadRequest},
		{"upstream down", &sources.TransientError{Source: "pullpush", Err: errors.New("boom")}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubService{err: tt.err}, "")

			rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1", nil))

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestGetCommentContext_DepthDefaultsAndOverrides(t *testing.T) {
	svc := &stubService{tv: threadView("thr1")}
	srv := newTestServer(t, svc, "")

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1/comments/c4/context", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view.LoadRequest{ThreadID: "thr1", CommentID: "c4", Context: defaultContextDepth}, svc.lastReq)

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1/comments/c4/context?depth=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.lastReq.Context)

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1/comments/c4/context?depth=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "tester"})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth_GuardsAPIRoutes(t *testing.T) {
	svc := &stubService{tv: threadView("thr1")}
	srv := newTestServer(t, svc, "s3cret")

	// No token.
	rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = do(srv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with the wrong secret.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other"))
	rec = do(srv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/threads/thr1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret"))
	rec = do(srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
