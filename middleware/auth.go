package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

const (
	// ContextUserKey is the key used to store the authenticated models.User in Gin context.
	ContextUserKey = "user"
	// ContextTokenKey stores the raw bearer token inside Gin context.
	ContextTokenKey = "token"
)

// CallerResolver maps a bearer token to the user it identifies.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (models.User, error)
}

// AuthRequired ensures the request carries a valid bearer token for an existing user.
func AuthRequired(resolver CallerResolver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx)
		if !ok {
			return
		}

		user, err := resolver.ResolveCaller(ctx.Request.Context(), token)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired.
func CurrentUser(ctx *gin.Context) (models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		return "", false
	}
	return token, true
}
