package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/restitch/internal/recon"
	"github.com/restitch/internal/sources"
	"github.com/restitch/internal/view"
)

// defaultContextDepth matches the ancestor cap of the live permalink
// endpoint.
const defaultContextDepth = 8

// getThread reconciles a whole thread. Query params: target (approximate
// new-comment count), at (comment id to anchor the load on), all (load
// until full coverage).
func (s *Server) getThread(c echo.Context) error {
	req := view.LoadRequest{
		ThreadID:  c.Param("id"),
		CommentID: c.QueryParam("at"),
	}

	if raw := c.QueryParam("target"); raw != "" {
		target, err := strconv.Atoi(raw)
		if err != nil || target < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid target parameter")
		}
		req.Target = target
	}
	if raw := c.QueryParam("all"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid all parameter")
		}
		req.All = all
	}

	tv, err := s.service.LoadThread(c.Request().Context(), req)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, tv)
}

// getCommentContext reconciles a single permalinked comment and widens its
// ancestor chain. Query param: depth (ancestor count, default 8).
func (s *Server) getCommentContext(c echo.Context) error {
	req := view.LoadRequest{
		ThreadID:  c.Param("id"),
		CommentID: c.Param("comment_id"),
		Context:   defaultContextDepth,
	}

	if raw := c.QueryParam("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid depth parameter")
		}
		req.Context = depth
	}

	tv, err := s.service.LoadThread(c.Request().Context(), req)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, tv)
}

// httpError maps the load error taxonomy onto response codes: missing
// threads or comments 404, restricted threads 403, anchors from a foreign
// thread 400, failed upstreams 502.
func (s *Server) httpError(c echo.Context, err error) error {
	var mismatch *recon.LinkMismatchError
	switch {
	case sources.IsForbidden(err):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case sources.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &mismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case sources.IsTransient(err):
		s.log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("upstream failure")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("load failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
