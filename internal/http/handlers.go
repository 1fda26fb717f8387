package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/logging"
	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// statusForCode maps an engine error code to an HTTP status. Authorization
// failures are 404 so callers cannot tell which projects exist.
func statusForCode(code string) int {
	switch vectorstore.Kind(code) {
	case vectorstore.KindValidation:
		return http.StatusBadRequest
	case vectorstore.KindAuthorization:
		return http.StatusNotFound
	case vectorstore.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: msg, Code: string(vectorstore.KindValidation)})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIngest chunks, embeds and stores a document in the project.
func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Debug(c.Request().Context(), "invalid ingest request", zap.Error(err))
		return badRequest(c, "invalid request body")
	}

	projectID := c.Param("project_id")
	userID := c.Request().Header.Get(HeaderUserID)
	ctx := logging.WithScope(c.Request().Context(), projectID, userID)

	resp := s.engine.Ingest(ctx, projectID, userID, req.Content, req.Filename)
	if !resp.Success {
		return c.JSON(statusForCode(resp.Code), resp)
	}
	return c.JSON(http.StatusCreated, resp)
}

// handleSearch returns the project's chunks most similar to the query.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Debug(c.Request().Context(), "invalid search request", zap.Error(err))
		return badRequest(c, "invalid request body")
	}

	projectID := c.Param("project_id")
	userID := c.Request().Header.Get(HeaderUserID)
	ctx := logging.WithScope(c.Request().Context(), projectID, userID)

	resp := s.engine.Search(ctx, projectID, userID, req.Query, req.TopK)
	if !resp.Success {
		return c.JSON(statusForCode(resp.Code), resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleDelete removes every vector of the project.
func (s *Server) handleDelete(c echo.Context) error {
	projectID := c.Param("project_id")
	userID := c.Request().Header.Get(HeaderUserID)
	ctx := logging.WithScope(c.Request().Context(), projectID, userID)

	resp := s.engine.DeleteProjectVectors(ctx, projectID, userID)
	if !resp.Success {
		return c.JSON(statusForCode(resp.Code), resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleStats reports store-wide counts to operators holding the stats token.
func (s *Server) handleStats(c echo.Context) error {
	if s.config.StatsToken == "" {
		return echo.ErrNotFound
	}

	token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.StatsToken)) != 1 {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Success: false, Error: "invalid stats token", Code: string(vectorstore.KindAuthorization)})
	}

	return c.JSON(http.StatusOK, s.engine.Stats())
}
