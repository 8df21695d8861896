package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/middleware"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// PostController exposes the post lifecycle over HTTP.
type PostController struct {
	posts  *services.PostService
	files  *services.FileService
	logger *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService, files *services.FileService, logger *zap.Logger) *PostController {
	return &PostController{posts: posts, files: files, logger: logger}
}

// ListPosts returns a newest-first page of posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	offset, limit := parsePagination(ctx.Query("offset"), ctx.Query("limit"))

	items, err := p.posts.List(ctx.Request.Context(), offset, limit)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	total, err := p.posts.Count(ctx.Request.Context())
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{
		"items": items,
		"pagination": gin.H{
			"offset": offset,
			"limit":  limit,
			"total":  total,
		},
	})
}

func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	input, ok := bindPostInput(ctx)
	if !ok {
		return
	}
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Create(ctx.Request.Context(), input, user)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", gin.H{"post": post})
}

// UpdatePost allows the author to update their post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	input, ok := bindPostInput(ctx)
	if !ok {
		return
	}
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Update(ctx.Request.Context(), id, input, user)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost allows the author to delete their post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	if err := p.posts.Remove(ctx.Request.Context(), id, user); err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (p *PostController) LikePost(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Like(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

func (p *PostController) DislikePost(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Dislike(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// SharePost reposts the post as the caller and returns the repost.
func (p *PostController) SharePost(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Share(ctx.Request.Context(), id, user)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", gin.H{"post": post})
}

// UploadMedia stores an image and returns its id for later use as image_id.
func (p *PostController) UploadMedia(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	media, err := p.files.Save(ctx.Request.Context(), header)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, media)
}

// AddImage uploads an image and attaches it to a post owned by the caller.
func (p *PostController) AddImage(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		return
	}
	user, ok := requireUser(ctx)
	if !ok {
		return
	}
	// fail before writing the file; AttachImage checks ownership again
	if err := p.posts.CheckOwner(ctx.Request.Context(), id, user); err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	header, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	media, err := p.files.Save(ctx.Request.Context(), header)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	post, err := p.posts.AttachImage(ctx.Request.Context(), id, media.ID, user)
	if err != nil {
		writeError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

func bindPostInput(ctx *gin.Context) (models.PostInput, bool) {
	var input models.PostInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return models.PostInput{}, false
	}
	input.Title = utils.SanitizePlain(input.Title)
	if input.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return models.PostInput{}, false
	}
	input.Content = utils.Sanitize(input.Content)
	if (input.Lat == nil) != (input.Lon == nil) {
		utils.Error(ctx, http.StatusBadRequest, 40022, "lat and lon must be given together")
		return models.PostInput{}, false
	}
	return input, true
}

func requireUser(ctx *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return user, ok
}
