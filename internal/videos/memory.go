package videos

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/videohub/backend/internal/models"
)

// MemoryStore keeps videos in a map guarded by a single lock.
type MemoryStore struct {
	mu     sync.RWMutex
	videos map[int64]*models.Video
	lastID int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{videos: make(map[int64]*models.Video)}
}

// Create assigns the next ID and stores a copy of v.
func (s *MemoryStore) Create(_ context.Context, v *models.Video, dataURL DataURLFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	now := time.Now().UTC()
	v.ID = s.lastID
	if dataURL != nil {
		v.DataURL = dataURL(v.ID)
	}
	v.Likes = 0
	v.LikedBy = nil
	v.CreatedAt = now
	v.UpdatedAt = now
	s.videos[v.ID] = v.Clone()
	return nil
}

// Update replaces metadata fields of an existing video.
func (s *MemoryStore) Update(_ context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.videos[v.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = v.Title
	cur.Duration = v.Duration
	cur.Location = v.Location
	cur.Subject = v.Subject
	cur.ContentType = v.ContentType
	cur.DataURL = v.DataURL
	cur.UpdatedAt = time.Now().UTC()

	v.Likes = cur.Likes
	v.LikedBy = append([]string(nil), cur.LikedBy...)
	v.CreatedAt = cur.CreatedAt
	v.UpdatedAt = cur.UpdatedAt
	return nil
}

// SetContentTypeIfEmpty sets the content type of a video that has none.
func (s *MemoryStore) SetContentTypeIfEmpty(_ context.Context, id int64, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return "", ErrNotFound
	}
	if v.ContentType == "" && contentType != "" {
		v.ContentType = contentType
		v.UpdatedAt = time.Now().UTC()
	}
	return v.ContentType, nil
}

// GetByID returns a copy of the video.
func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v.Clone(), nil
}

// List returns all videos ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		list = append(list, *v.Clone())
	}
	models.SortVideos(list)
	return list, nil
}

// FindByTitle returns videos whose title equals title.
func (s *MemoryStore) FindByTitle(ctx context.Context, title string) ([]models.Video, error) {
	list, _ := s.List(ctx)
	return filterVideos(list, func(v *models.Video) bool { return v.Title == title }), nil
}

// FindByDurationLessThan returns videos strictly shorter than limit.
func (s *MemoryStore) FindByDurationLessThan(ctx context.Context, limit int64) ([]models.Video, error) {
	list, _ := s.List(ctx)
	return filterVideos(list, func(v *models.Video) bool { return v.Duration < limit }), nil
}

// Like adds username to the liked set.
func (s *MemoryStore) Like(_ context.Context, id int64, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return 0, ErrNotFound
	}
	if v.HasLiked(username) {
		return v.Likes, ErrAlreadyLiked
	}
	v.LikedBy = append(v.LikedBy, username)
	sort.Strings(v.LikedBy)
	v.Likes = len(v.LikedBy)
	return v.Likes, nil
}

// Unlike removes username from the liked set.
func (s *MemoryStore) Unlike(_ context.Context, id int64, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return 0, ErrNotFound
	}
	if !v.HasLiked(username) {
		return v.Likes, ErrNotLiked
	}
	kept := v.LikedBy[:0]
	for _, u := range v.LikedBy {
		if u != username {
			kept = append(kept, u)
		}
	}
	v.LikedBy = kept
	v.Likes = len(v.LikedBy)
	return v.Likes, nil
}
