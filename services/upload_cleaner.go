package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// UploadCleaner removes uploaded images that no post references once they are older than a grace period.
type UploadCleaner struct {
	files  *FileService
	posts  *PostService
	grace  time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewUploadCleaner creates an UploadCleaner. logger may be nil.
func NewUploadCleaner(files *FileService, posts *PostService, grace time.Duration, logger *zap.Logger) *UploadCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadCleaner{files: files, posts: posts, grace: grace, logger: logger, now: time.Now}
}

// Sweep deletes orphaned uploads and returns how many files were removed.
func (c *UploadCleaner) Sweep(ctx context.Context) (int, error) {
	referenced, err := c.posts.ImageIDs(ctx)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(c.files.Dir())
	if err != nil {
		return 0, err
	}

	cutoff := c.now().Add(-c.grace)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := referenced[e.Name()]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.files.Dir(), e.Name())); err != nil {
			c.logger.Warn("upload cleaner remove failed", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Start runs Sweep every interval until ctx is cancelled. It is best-effort and logs failures.
func (c *UploadCleaner) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.Sweep(ctx)
				if err != nil {
					c.logger.Warn("upload cleaner sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					c.logger.Info("upload cleaner removed orphans", zap.Int("count", n))
				}
			}
		}
	}()
}
