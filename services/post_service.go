package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/repositories"
)

// PostService implements the post lifecycle on top of the post and identity stores.
type PostService struct {
	posts  repositories.PostRepository
	users  repositories.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewPostService creates a PostService. logger may be nil.
func NewPostService(posts repositories.PostRepository, users repositories.UserRepository, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{posts: posts, users: users, logger: logger, now: time.Now}
}

// List returns a newest-first page of posts with author names joined in one batch.
func (s *PostService) List(ctx context.Context, offset, limit int) ([]models.PostView, error) {
	posts, err := s.posts.GetAll(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, posts...)
}

// Count returns the number of stored posts.
func (s *PostService) Count(ctx context.Context) (int, error) {
	return s.posts.Count(ctx)
}

func (s *PostService) Get(ctx context.Context, id int64) (models.PostView, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return models.PostView{}, err
	}
	return s.view(ctx, p)
}

// Create publishes a new post authored by caller.
func (s *PostService) Create(ctx context.Context, input models.PostInput, caller models.User) (models.PostView, error) {
	p := models.Post{
		AuthorID:  caller.ID,
		CreatedAt: s.now().UnixMilli(),
	}
	input.ApplyTo(&p)

	saved, err := s.posts.Save(ctx, p)
	if err != nil {
		return models.PostView{}, err
	}
	s.logger.Info("post created", zap.Int64("post_id", saved.ID), zap.Int64("author_id", caller.ID))
	return s.view(ctx, saved)
}

// Update edits a post owned by caller. The ownership check runs inside the store's
// critical section, so a concurrent like is never overwritten.
func (s *PostService) Update(ctx context.Context, id int64, input models.PostInput, caller models.User) (models.PostView, error) {
	updated, err := s.posts.Update(ctx, id, func(p *models.Post) error {
		if err := checkAccess(*p, caller); err != nil {
			return err
		}
		input.ApplyTo(p)
		return nil
	})
	if err != nil {
		return models.PostView{}, err
	}
	return s.view(ctx, updated)
}

// AttachImage sets the image of a post owned by caller.
func (s *PostService) AttachImage(ctx context.Context, id int64, imageID string, caller models.User) (models.PostView, error) {
	updated, err := s.posts.Update(ctx, id, func(p *models.Post) error {
		if err := checkAccess(*p, caller); err != nil {
			return err
		}
		p.ImageID = &imageID
		return nil
	})
	if err != nil {
		return models.PostView{}, err
	}
	return s.view(ctx, updated)
}

// CheckOwner reports ErrNotFound or ErrAccessDenied unless caller authored post id.
// It is advisory; mutations re-check ownership themselves.
func (s *PostService) CheckOwner(ctx context.Context, id int64, caller models.User) error {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return checkAccess(p, caller)
}

// Remove deletes a post owned by caller.
func (s *PostService) Remove(ctx context.Context, id int64, caller models.User) error {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkAccess(p, caller); err != nil {
		return err
	}
	if err := s.posts.RemoveByID(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post removed", zap.Int64("post_id", id), zap.Int64("author_id", caller.ID))
	return nil
}

func (s *PostService) Like(ctx context.Context, id int64) (models.PostView, error) {
	p, err := s.posts.LikeByID(ctx, id)
	if err != nil {
		return models.PostView{}, err
	}
	return s.view(ctx, p)
}

func (s *PostService) Dislike(ctx context.Context, id int64) (models.PostView, error) {
	p, err := s.posts.DislikeByID(ctx, id)
	if err != nil {
		return models.PostView{}, err
	}
	return s.view(ctx, p)
}

// Share reposts id on behalf of caller and returns the new repost.
func (s *PostService) Share(ctx context.Context, id int64, caller models.User) (models.PostView, error) {
	p, err := s.posts.Share(ctx, id, caller)
	if err != nil {
		return models.PostView{}, err
	}
	s.logger.Info("post shared", zap.Int64("parent_id", id), zap.Int64("post_id", p.ID), zap.Int64("author_id", caller.ID))
	return s.view(ctx, p)
}

func checkAccess(p models.Post, caller models.User) error {
	if p.AuthorID != caller.ID {
		return fmt.Errorf("post %d: %w", p.ID, models.ErrAccessDenied)
	}
	return nil
}

func (s *PostService) view(ctx context.Context, p models.Post) (models.PostView, error) {
	views, err := s.views(ctx, p)
	if err != nil {
		return models.PostView{}, err
	}
	return views[0], nil
}

// views resolves every distinct author with a single GetByIDs call.
func (s *PostService) views(ctx context.Context, posts ...models.Post) ([]models.PostView, error) {
	out := make([]models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(posts))
	seen := make(map[int64]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	for _, p := range posts {
		out = append(out, models.PostView{Post: p, Author: names[p.AuthorID]})
	}
	return out, nil
}

// ImageIDs returns every image id currently referenced by a post.
func (s *PostService) ImageIDs(ctx context.Context) (map[string]struct{}, error) {
	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.GetAll(ctx, 0, total)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	for _, p := range posts {
		if p.ImageID != nil {
			ids[*p.ImageID] = struct{}{}
		}
	}
	return ids, nil
}
