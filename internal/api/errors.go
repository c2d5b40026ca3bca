package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-backend/internal/domain"
	"rag-backend/internal/storage"
	"rag-backend/internal/tasks"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

var errNotPDF = errors.New("Only PDF files are supported")

// statusFor maps an error to its HTTP status. Deadlines are checked before
// upstream failures because a timed-out upstream call is reported as both.
func statusFor(err error) int {
	var (
		ue *domain.UpstreamError
		pe *domain.PipelineError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrInvalidDocument),
		errors.Is(err, storage.ErrInvalidFilename),
		errors.Is(err, errNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, tasks.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, tasks.ErrQueueFull), errors.Is(err, tasks.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &ue), errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: detail})
}
