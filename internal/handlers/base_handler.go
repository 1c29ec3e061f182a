package handlers

import (
	"strconv"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/validator"
	"workbridge_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{validator: v}
}

// BindAndValidateJSON binds the request body and validates it. On failure
// it writes the error response and returns false.
func (h *BaseHandler) BindAndValidateJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("invalid request body: "+err.Error()))
		return false
	}

	if err := h.validator.Struct(obj); err != nil {
		if vErr, ok := err.(*validator.ValidationError); ok {
			apperrors.HandleError(c, apperrors.ValidationError(vErr.Errors))
		} else {
			apperrors.HandleError(c, apperrors.InternalError(err))
		}
		return false
	}
	return true
}

func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		apperrors.HandleError(c, appErr)
		return
	}
	logger.CtxError(c.Request.Context(), "unhandled service error", "error", err, "path", c.Request.URL.Path)
	apperrors.HandleError(c, apperrors.InternalError(err))
}

// RequireUserID pulls the authenticated user from the context; writes a
// 401 and returns false if auth middleware did not run.
func (h *BaseHandler) RequireUserID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("user not authenticated"))
		return "", false
	}
	return userID, true
}

func ParseQueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParsePagination reads limit/offset query params with sane bounds.
func ParsePagination(c *gin.Context) (limit, offset int) {
	const defaultLimit = 20
	const maxLimit = 100

	limit = ParseQueryInt(c, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset = ParseQueryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
