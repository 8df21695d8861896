package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/middleware"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// AuthController handles registration, login and profile endpoints.
type AuthController struct {
	auth   *services.AuthService
	logger *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(auth *services.AuthService, logger *zap.Logger) *AuthController {
	return &AuthController{auth: auth, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

// Register creates an account. No token is issued; clients log in afterwards.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	username := strings.TrimSpace(req.Username)
	if !validUsername(username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits, '-', '_' and '.'")
		return
	}

	user, err := a.auth.Register(ctx.Request.Context(), username, req.Password)
	if err != nil {
		writeError(ctx, a.logger, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", gin.H{"user": user})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	token, err := a.auth.Authenticate(ctx.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		writeError(ctx, a.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"token": token})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if err := a.auth.Logout(ctx.Request.Context(), token); err != nil {
		writeError(ctx, a.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{"user": user.View()})
}

// ChangePassword replaces the caller's password after checking the current one.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,max=72"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if err := a.auth.ChangePassword(ctx.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(ctx, a.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "password changed"})
}

// GetUserPublic returns public user info by ID.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	user, err := a.auth.GetUser(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, a.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// GetUserPublicByUsername returns public user info by username.
func (a *AuthController) GetUserPublicByUsername(ctx *gin.Context) {
	uname := strings.TrimSpace(ctx.Param("username"))
	if uname == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "missing username")
		return
	}
	user, err := a.auth.GetUserByUsername(ctx.Request.Context(), uname)
	if err != nil {
		writeError(ctx, a.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

func validUsername(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}
