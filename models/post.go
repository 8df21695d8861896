package models

// Post represents a feed entry. A repost carries ParentID pointing at the original.
type Post struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	AuthorID     int64    `json:"author_id"`
	CreatedAt    int64    `json:"created_at"` // unix milliseconds
	LikeCount    int64    `json:"like_count"`
	CommentCount int64    `json:"comment_count"`
	RepostCount  int64    `json:"repost_count"`
	Lon          *float64 `json:"lon"`
	Lat          *float64 `json:"lat"`
	VideoURL     *string  `json:"video_url"`
	AdvertURL    *string  `json:"advert_url"`
	ImageID      *string  `json:"image_id"`
	ParentID     *int64   `json:"parent_id"`
}

// Clone returns a deep copy so that stored posts never share pointers with callers.
func (p Post) Clone() Post {
	c := p
	c.Lon = clonePtr(p.Lon)
	c.Lat = clonePtr(p.Lat)
	c.VideoURL = clonePtr(p.VideoURL)
	c.AdvertURL = clonePtr(p.AdvertURL)
	c.ImageID = clonePtr(p.ImageID)
	c.ParentID = clonePtr(p.ParentID)
	return c
}

// PostInput carries the user-editable fields of a post.
type PostInput struct {
	Title     string   `json:"title" binding:"required"`
	Content   string   `json:"content"`
	Lon       *float64 `json:"lon"`
	Lat       *float64 `json:"lat"`
	VideoURL  *string  `json:"video_url"`
	AdvertURL *string  `json:"advert_url"`
	ImageID   *string  `json:"image_id"`
}

// ApplyTo copies the editable fields onto p. Identity, authorship, timestamps
// and counters are left untouched.
func (in PostInput) ApplyTo(p *Post) {
	p.Title = in.Title
	p.Content = in.Content
	p.Lon = clonePtr(in.Lon)
	p.Lat = clonePtr(in.Lat)
	p.VideoURL = clonePtr(in.VideoURL)
	p.AdvertURL = clonePtr(in.AdvertURL)
	p.ImageID = clonePtr(in.ImageID)
}

// PostView is the public shape of a post with the author's username joined in.
type PostView struct {
	Post
	Author string `json:"author"`
}

// MediaType classifies an uploaded attachment.
type MediaType string

const MediaTypeImage MediaType = "image"

// MediaResponse describes a stored upload.
type MediaResponse struct {
	ID   string    `json:"id"`
	Type MediaType `json:"type"`
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
