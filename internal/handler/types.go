package handler

import (
	"storyboard-server/internal/models"
)

// ErrorResponse — единый формат тела ошибки API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Коды ошибок API.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeWrongCredentials    = "WRONG_CREDENTIALS"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeStoryBusy           = "STORY_BUSY"
	ErrCodeRoundActive         = "GENERATION_IN_PROGRESS"
	ErrCodeEmptyScript         = "EMPTY_SCRIPT"
	ErrCodePromptMissing       = "PROMPT_MISSING"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type createStoryRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"` // Непустое описание запускает guided-генерацию сценария
}

type updateScriptRequest struct {
	Script string `json:"script" binding:"required"`
}

type refineScriptRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

type generateSegmentsRequest struct {
	IsVertical bool `json:"isVertical"`
}

type updatePromptRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	Regenerate bool   `json:"regenerate"` // Сразу перегенерировать изображение с новым промптом
}

type creditsResponse struct {
	Credits int `json:"credits"`
}

type storyResponse struct {
	Story    *models.Story    `json:"story"`
	Segments []models.Segment `json:"segments"`
}

type imageURLResponse struct {
	ImageURL   string `json:"imageUrl"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type billingWebhookRequest struct {
	EventID string `json:"eventId" binding:"required"`
	Type    string `json:"type" binding:"required"`
	UserID  string `json:"userId"`
	Plan    string `json:"plan"`
}
