package middleware

import (
	"errors"
	"net/http"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware turns errors attached via c.Error into the
// response body. Handlers stay free of status-code bookkeeping; the
// mapping from domain sentinels to HTTP lives here and nowhere else.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := apperrors.GetAppError(err)
		if appErr == nil {
			appErr = mapSentinel(err)
		}

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("request failed",
				"code", appErr.Code,
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else {
			logger.Infow("request rejected",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		c.JSON(appErr.HTTPStatus, gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		})
	}
}

// mapSentinel translates the domain and service error vocabulary.
// Anything unrecognised is an internal error with a generic body.
func mapSentinel(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrServerNotFound),
		errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrRoleNotFound),
		errors.Is(err, domain.ErrInviteNotFound),
		errors.Is(err, domain.ErrFriendshipNotFound):
		return apperrors.New(apperrors.ErrCodeNotFound, err.Error(), http.StatusNotFound)

	case errors.Is(err, services.ErrPermissionDenied),
		errors.Is(err, services.ErrOwnerImmutable),
		errors.Is(err, domain.ErrNotMember),
		errors.Is(err, domain.ErrBanned),
		errors.Is(err, services.ErrBlocked),
		errors.Is(err, services.ErrBlockedByYou):
		return apperrors.New(apperrors.ErrCodeForbidden, err.Error(), http.StatusForbidden)

	case errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, services.ErrAlreadyFriends),
		errors.Is(err, services.ErrRequestPending),
		errors.Is(err, services.ErrRequestIncoming):
		return apperrors.New(apperrors.ErrCodeConflict, err.Error(), http.StatusConflict)

	case errors.Is(err, services.ErrSelfFriendship):
		return apperrors.New(apperrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)

	case errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrExpiredToken):
		return apperrors.New(apperrors.ErrCodeUnauthorized, err.Error(), http.StatusUnauthorized)

	default:
		return apperrors.New(apperrors.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
	}
}

// RecoveryMiddleware keeps a panicking handler from taking the process
// down with it.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
