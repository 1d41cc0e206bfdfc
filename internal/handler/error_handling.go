package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyboard-server/internal/models"
)

// handleServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp ErrorResponse

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = ErrorResponse{Code: ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeWrongCredentials, Message: "Invalid email or password"}
	case errors.Is(err, models.ErrEmailAlreadyExists):
		statusCode = http.StatusConflict
		errResp = ErrorResponse{Code: ErrCodeDuplicateEmail, Message: "Email already exists"}
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeTokenExpired, Message: "Token has expired"}
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrTokenMalformed):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeTokenInvalid, Message: "Token is invalid or malformed"}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeUnauthorized, Message: "Authentication required"}
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = ErrorResponse{Code: ErrCodeForbidden, Message: "Access denied"}
	case errors.Is(err, models.ErrStoryNotFound),
		errors.Is(err, models.ErrSegmentNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = ErrorResponse{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrInsufficientCredits):
		// 402: клиент показывает экран покупки кредитов
		statusCode = http.StatusPaymentRequired
		errResp = ErrorResponse{Code: ErrCodeInsufficientCredits, Message: "Not enough credits"}
	case errors.Is(err, models.ErrGenerationInProgress):
		statusCode = http.StatusConflict
		errResp = ErrorResponse{Code: ErrCodeRoundActive, Message: "Segment generation is already in progress"}
	case errors.Is(err, models.ErrStoryBusy):
		statusCode = http.StatusConflict
		errResp = ErrorResponse{Code: ErrCodeStoryBusy, Message: "Story has an operation in progress"}
	case errors.Is(err, models.ErrEmptyScript):
		statusCode = http.StatusBadRequest
		errResp = ErrorResponse{Code: ErrCodeEmptyScript, Message: "Story script is empty"}
	case errors.Is(err, models.ErrPromptMissing):
		statusCode = http.StatusBadRequest
		errResp = ErrorResponse{Code: ErrCodePromptMissing, Message: "Segment has no generation prompt"}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = ErrorResponse{Code: ErrCodeInternal, Message: "Internal server error"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
