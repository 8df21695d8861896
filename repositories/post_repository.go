package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cppla/socialfeed/models"
)

// PostRepository is the post store. Every method is linearizable with respect to the
// others on the same instance.
type PostRepository interface {
	GetAll(ctx context.Context, offset, limit int) ([]models.Post, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id int64) (models.Post, error)
	Save(ctx context.Context, post models.Post) (models.Post, error)
	Update(ctx context.Context, id int64, fn func(*models.Post) error) (models.Post, error)
	RemoveByID(ctx context.Context, id int64) error
	LikeByID(ctx context.Context, id int64) (models.Post, error)
	DislikeByID(ctx context.Context, id int64) (models.Post, error)
	Share(ctx context.Context, id int64, actor models.User) (models.Post, error)
}

// PostRepositoryInMemory keeps posts in insertion order behind a single RWMutex.
// Mutations take the write lock, so counter read-modify-write sequences never interleave.
type PostRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	items  []models.Post
	index  map[int64]int
	now    func() time.Time
}

// PostRepositoryOption configures a PostRepositoryInMemory.
type PostRepositoryOption func(*PostRepositoryInMemory)

// WithClock overrides the clock used to stamp reposts.
func WithClock(now func() time.Time) PostRepositoryOption {
	return func(r *PostRepositoryInMemory) {
		if now != nil {
			r.now = now
		}
	}
}

// NewPostRepositoryInMemory creates an empty post store.
func NewPostRepositoryInMemory(opts ...PostRepositoryOption) *PostRepositoryInMemory {
	r := &PostRepositoryInMemory{
		nextID: 1,
		index:  make(map[int64]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetAll returns posts newest first, sliced to [offset, offset+limit).
// Out of range windows are clamped instead of failing.
func (r *PostRepositoryInMemory) GetAll(_ context.Context, offset, limit int) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.items)
	start, end := clampWindow(n, offset, limit)
	out := make([]models.Post, 0, end-start)
	for i := start; i < end; i++ {
		// position i in newest-first order
		out = append(out, r.items[n-1-i].Clone())
	}
	return out, nil
}

func (r *PostRepositoryInMemory) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}

func (r *PostRepositoryInMemory) GetByID(_ context.Context, id int64) (models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, err := r.getLocked(id)
	if err != nil {
		return models.Post{}, err
	}
	return p.Clone(), nil
}

// Save creates the post when ID is 0, otherwise overwrites the stored post with the same ID.
func (r *PostRepositoryInMemory) Save(_ context.Context, post models.Post) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(post.Clone())
}

// Update applies fn to a copy of the stored post and persists it, all under the write lock.
// If fn returns an error nothing is written.
func (r *PostRepositoryInMemory) Update(_ context.Context, id int64, fn func(*models.Post) error) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.getLocked(id)
	if err != nil {
		return models.Post{}, err
	}
	cp := p.Clone()
	if err := fn(&cp); err != nil {
		return models.Post{}, err
	}
	// fn may not move the post to another id
	cp.ID = id
	return r.saveLocked(cp)
}

// RemoveByID deletes the post. Removing an unknown id is a no-op.
func (r *PostRepositoryInMemory) RemoveByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.index[id]
	if !ok {
		return nil
	}
	r.items = append(r.items[:idx], r.items[idx+1:]...)
	delete(r.index, id)
	for i := idx; i < len(r.items); i++ {
		r.index[r.items[i].ID] = i
	}
	return nil
}

func (r *PostRepositoryInMemory) LikeByID(_ context.Context, id int64) (models.Post, error) {
	return r.adjustLikes(id, 1)
}

// DislikeByID decrements the like counter. The counter has no floor and may go negative.
func (r *PostRepositoryInMemory) DislikeByID(_ context.Context, id int64) (models.Post, error) {
	return r.adjustLikes(id, -1)
}

// Share bumps the original's repost counter and inserts the repost authored by actor.
// Both effects happen in the same critical section.
func (r *PostRepositoryInMemory) Share(_ context.Context, id int64, actor models.User) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.index[id]
	if !ok {
		return models.Post{}, fmt.Errorf("post %d: %w", id, models.ErrNotFound)
	}
	r.items[idx].RepostCount++
	original := r.items[idx].Clone()

	parentID := original.ID
	repost := models.Post{
		Title:     original.Title,
		Content:   original.Content,
		AuthorID:  actor.ID,
		CreatedAt: r.now().UnixMilli(),
		Lon:       original.Lon,
		Lat:       original.Lat,
		VideoURL:  original.VideoURL,
		AdvertURL: original.AdvertURL,
		ImageID:   original.ImageID,
		ParentID:  &parentID,
	}
	return r.saveLocked(repost)
}

func (r *PostRepositoryInMemory) adjustLikes(id int64, delta int64) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.index[id]
	if !ok {
		return models.Post{}, fmt.Errorf("post %d: %w", id, models.ErrNotFound)
	}
	r.items[idx].LikeCount += delta
	return r.items[idx].Clone(), nil
}

func (r *PostRepositoryInMemory) getLocked(id int64) (models.Post, error) {
	idx, ok := r.index[id]
	if !ok {
		return models.Post{}, fmt.Errorf("post %d: %w", id, models.ErrNotFound)
	}
	return r.items[idx], nil
}

// saveLocked expects an already cloned post and the write lock held.
func (r *PostRepositoryInMemory) saveLocked(p models.Post) (models.Post, error) {
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
		r.index[p.ID] = len(r.items)
		r.items = append(r.items, p)
		return p.Clone(), nil
	}
	idx, ok := r.index[p.ID]
	if !ok {
		return models.Post{}, fmt.Errorf("post %d: %w", p.ID, models.ErrNotFound)
	}
	r.items[idx] = p
	return p.Clone(), nil
}

func clampWindow(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	if limit < 0 {
		limit = 0
	}
	end := offset + limit
	if end > n || end < offset { // overflow guard
		end = n
	}
	return offset, end
}
