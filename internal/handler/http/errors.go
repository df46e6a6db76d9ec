package http

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/dto"
)

var conflictErrors = []error{
	domain.ErrCommitInProgress,
	domain.ErrLockBusy,
	domain.ErrVersionConflict,
	domain.ErrAlreadyProcessing,
	domain.ErrQueueFrozen,
	domain.ErrInvalidState,
}

var badRequestErrors = []error{
	domain.ErrEmptyQueue,
	domain.ErrUnknownKind,
	domain.ErrUnknownDraftField,
	domain.ErrInvalidDraftValue,
	domain.ErrInvalidDescriptor,
	domain.ErrInvalidImageData,
	domain.ErrInvalidFormat,
	domain.ErrFileTooLarge,
}

// errorResponse maps a service error to a status code and body.
func errorResponse(err error) (int, dto.ErrorResponse) {
	var (
		validErr *domain.ValidationError
		pipeErr  *domain.PipelineError
	)
	switch {
	case errors.As(err, &validErr):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "validation_failed",
			Message: validErr.Error(),
			Kind:    string(validErr.Kind),
		}
	case errors.As(err, &pipeErr):
		code := "commit_failed"
		if errors.Is(pipeErr, domain.ErrCommitCancelled) {
			code = "commit_cancelled"
		}
		failedAt := pipeErr.FailedAt
		return http.StatusConflict, dto.ErrorResponse{
			Error:    code,
			Message:  pipeErr.Error(),
			FailedAt: &failedAt,
			Kind:     string(pipeErr.Kind),
		}
	case errors.Is(err, domain.ErrImageNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrQueueFailed):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: "queue_unavailable", Message: err.Error()}
	}

	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict, dto.ErrorResponse{Error: "conflict", Message: err.Error()}
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, dto.ErrorResponse{Error: "server_error", Message: "internal error"}
}

func respondError(c *ginext.Context, err error, msg string) {
	status, body := errorResponse(err)
	body.Code = status
	if status >= http.StatusInternalServerError {
		zlog.Logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	} else {
		zlog.Logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	}
	c.JSON(status, body)
}

func badRequest(c *ginext.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
