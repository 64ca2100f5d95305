package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/dto"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/middleware"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domainErrors.ErrInvalidMembershipID),
		errors.Is(err, domainErrors.ErrInvalidProduct),
		errors.Is(err, domainErrors.ErrInvalidAuthorization),
		errors.Is(err, domainErrors.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrAlreadyExists),
		errors.Is(err, domainErrors.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error body. Internal errors are not echoed to the caller.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: message, RequestID: middleware.RequestID(c)})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: message, RequestID: middleware.RequestID(c)})
}
