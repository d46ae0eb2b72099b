package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"delta-gateway/internal/delta"
	"delta-gateway/internal/middleware"
	"delta-gateway/internal/service"
	"delta-gateway/internal/storage"
	"delta-gateway/internal/utils"
	"delta-gateway/pkg/response"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type TableController struct {
	service service.TableService
}

func NewTableController(service service.TableService) *TableController {
	return &TableController{service: service}
}

// RegisterRoutes mounts the table endpoints on rg.
func (tc *TableController) RegisterRoutes(rg *gin.RouterGroup) {
	tables := rg.Group("/tables")
	tables.GET("/snapshot", tc.GetSnapshot)
	tables.GET("/files", tc.ListFiles)
	tables.GET("/protocol", tc.GetProtocol)
	tables.GET("/history", tc.GetHistory)
	tables.GET("/version-at", tc.GetVersionAt)
}

// GetSnapshot godoc
// @Summary Load a table snapshot
// @Tags tables
// @Produce json
// @Param path query string true "Table root"
// @Param version query int false "Table version, latest when omitted"
// @Success 200 {object} response.StandardResponse{data=service.SnapshotSummary}
// @Router /api/v1/tables/snapshot [get]
func (tc *TableController) GetSnapshot(c *gin.Context) {
	root, req, ok := tc.tableParams(c)
	if !ok {
		return
	}

	summary, err := tc.service.GetSnapshot(c.Request.Context(), root, req)
	if err != nil {
		tc.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(summary, middleware.GetCorrelationID(c)))
}

// ListFiles godoc
// @Summary List the active data files of a table
// @Tags tables
// @Produce json
// @Param path query string true "Table root"
// @Param version query int false "Table version, latest when omitted"
// @Success 200 {object} response.StandardResponse{data=service.FilesResponse}
// @Failure 422 {object} response.StandardResponse
// @Router /api/v1/tables/files [get]
func (tc *TableController) ListFiles(c *gin.Context) {
	root, req, ok := tc.tableParams(c)
	if !ok {
		return
	}

	files, err := tc.service.ListFiles(c.Request.Context(), root, req)
	if err != nil {
		tc.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(files, middleware.GetCorrelationID(c)))
}

// GetProtocol godoc
// @Summary Report the table protocol and whether this reader supports it
// @Tags tables
// @Produce json
// @Param path query string true "Table root"
// @Param version query int false "Table version, latest when omitted"
// @Success 200 {object} response.StandardResponse{data=service.ProtocolResponse}
// @Router /api/v1/tables/protocol [get]
func (tc *TableController) GetProtocol(c *gin.Context) {
	root, req, ok := tc.tableParams(c)
	if !ok {
		return
	}

	proto, err := tc.service.GetProtocol(c.Request.Context(), root, req)
	if err != nil {
		tc.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(proto, middleware.GetCorrelationID(c)))
}

// GetHistory godoc
// @Summary List commits newest first
// @Tags tables
// @Produce json
// @Param path query string true "Table root"
// @Param limit query int false "Maximum number of commits (default 100)"
// @Router /api/v1/tables/history [get]
func (tc *TableController) GetHistory(c *gin.Context) {
	root, ok := tc.tableRoot(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			tc.badRequest(c, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	entries, err := tc.service.History(c.Request.Context(), root, limit)
	if err != nil {
		tc.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(entries, middleware.GetCorrelationID(c)))
}

// GetVersionAt godoc
// @Summary Resolve the latest version committed at or before a timestamp
// @Tags tables
// @Produce json
// @Param path query string true "Table root"
// @Param timestamp query string true "RFC 3339 time or unix milliseconds"
// @Router /api/v1/tables/version-at [get]
func (tc *TableController) GetVersionAt(c *gin.Context) {
	root, ok := tc.tableRoot(c)
	if !ok {
		return
	}

	ts, err := parseTimestamp(c.Query("timestamp"))
	if err != nil {
		tc.badRequest(c, err.Error())
		return
	}

	resp, err := tc.service.VersionAtTime(c.Request.Context(), root, ts)
	if err != nil {
		tc.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(resp, middleware.GetCorrelationID(c)))
}

func (tc *TableController) tableRoot(c *gin.Context) (string, bool) {
	if c.Query("path") == "" {
		tc.badRequest(c, "path is required")
		return "", false
	}
	root, err := storage.CleanPath(c.Query("path"))
	if err != nil || root == "" {
		tc.badRequest(c, "path must name a table inside the store")
		return "", false
	}
	return root, true
}

func (tc *TableController) tableParams(c *gin.Context) (string, delta.RequestedVersion, bool) {
	root, ok := tc.tableRoot(c)
	if !ok {
		return "", delta.RequestedVersion{}, false
	}

	raw := c.Query("version")
	if raw == "" {
		return root, delta.Latest(), true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		tc.badRequest(c, "version must be an integer")
		return "", delta.RequestedVersion{}, false
	}
	// Negative versions reach the engine, which reports them as not found.
	return root, delta.Exact(v), true
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be RFC 3339 or unix milliseconds")
	}
	return t, nil
}

func (tc *TableController) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, response.ValidationErrorResponse(message, middleware.GetCorrelationID(c)))
}

func (tc *TableController) sendError(c *gin.Context, err error) {
	appErr := utils.FromDeltaError(err)
	c.JSON(utils.GetErrorStatus(appErr), response.ErrorResponseFromAppError(appErr, middleware.GetCorrelationID(c)))
}
