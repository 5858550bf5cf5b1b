package server

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "discoveryserver/server/errors"
	"discoveryserver/server/services"
	"discoveryserver/types"
)

// handleError maps application errors to HTTP responses. Unknown
// errors become a generic 500 with the details kept in the logs.
func (s *Server) handleError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode() >= http.StatusInternalServerError {
			s.logger.Error("request failed", "path", c.Request.URL.Path, "error", appErr.Error())
		}
		c.JSON(appErr.StatusCode(), gin.H{"error": appErr.UserMessage()})
		return
	}
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func (s *Server) handleStartRun(c *gin.Context) {
	var req services.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	runID, err := s.service.StartRun(req)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) handleListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.service.ListRuns()})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.service.GetRun(c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleListLocations(c *gin.Context) {
	status := types.CandidateStatus(c.DefaultQuery("status", string(types.StatusPending)))
	switch status {
	case types.StatusPending, types.StatusApproved, types.StatusDuplicate, types.StatusRejected:
	default:
		s.handleError(c, apperrors.NewValidationError("unknown status filter", nil))
		return
	}

	locations, err := s.locations.ListByStatus(c.Request.Context(), status)
	if err != nil {
		s.handleError(c, apperrors.NewInternalError("failed to list locations", err))
		return
	}
	if locations == nil {
		locations = []types.LocationCandidate{}
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations, "count": len(locations)})
}

func (s *Server) handleGetLocation(c *gin.Context) {
	location, err := s.locations.GetByID(c.Request.Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		s.handleError(c, apperrors.NewNotFoundError("location not found", nil))
		return
	}
	if err != nil {
		s.handleError(c, apperrors.NewInternalError("failed to load location", err))
		return
	}
	c.JSON(http.StatusOK, location)
}

type statusUpdateRequest struct {
	Status types.CandidateStatus `json:"status"`
}

func (s *Server) handleUpdateLocationStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	// Moderation can only approve or reject; pipeline verdicts are not
	// assignable by hand.
	if req.Status != types.StatusApproved && req.Status != types.StatusRejected {
		s.handleError(c, apperrors.NewValidationError("status must be approved or rejected", nil))
		return
	}

	id := c.Param("id")
	err := s.locations.UpdateStatus(c.Request.Context(), id, req.Status)
	if err == sql.ErrNoRows {
		s.handleError(c, apperrors.NewNotFoundError("location not found", nil))
		return
	}
	if err != nil {
		s.handleError(c, apperrors.NewInternalError("failed to update location", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "stats": s.cache.Stats()})
}

func (s *Server) handleCacheClear(c *gin.Context) {
	if s.cache == nil {
		s.handleError(c, apperrors.NewConflictError("cache is disabled", nil))
		return
	}
	s.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) handleHealth(c *gin.Context) {
	status, dbStatus := "ok", "ok"
	code := http.StatusOK
	if err := s.locations.Ping(); err != nil {
		status, dbStatus = "degraded", "unreachable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "database": dbStatus})
}
