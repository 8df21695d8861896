package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

// writeError maps domain errors to HTTP responses. Unknown errors become 500 and are logged.
func writeError(ctx *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	case errors.Is(err, models.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
	case errors.Is(err, models.ErrCredential):
		utils.Error(ctx, http.StatusForbidden, 40303, "wrong password")
	case errors.Is(err, models.ErrAccessDenied):
		utils.Error(ctx, http.StatusForbidden, 40301, "access denied")
	case errors.Is(err, models.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
	case errors.Is(err, models.ErrUnsupportedMedia):
		utils.Error(ctx, http.StatusUnsupportedMediaType, 41501, "only jpeg and png images are accepted")
	case errors.Is(err, models.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, 40000, err.Error())
	default:
		logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

func paramID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid id")
		return 0, false
	}
	return id, true
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// parsePagination falls back to the default limit when it is missing and caps it at maxPageLimit.
func parsePagination(offsetStr, limitStr string) (int, int) {
	offset := 0
	limit := defaultPageLimit
	if o, err := strconv.Atoi(offsetStr); err == nil && o > 0 {
		offset = o
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
		limit = min(l, maxPageLimit)
	}
	return offset, limit
}
