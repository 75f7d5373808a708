package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rechnung/server/internal/logger"
	"rechnung/server/internal/services"
)

const msgInternal = "Interner Serverfehler"

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrDuplicateInvoiceNumber):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvoiceNotFound), errors.Is(err, services.ErrAdminNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrSaveBusy):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"message"}; internal details of 5xx errors stay in the log
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		c.JSON(status, gin.H{"message": msgInternal})
		return
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"message": "Ungültige Anfrage", "details": err.Error()})
}
