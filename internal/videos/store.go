package videos

import (
	"context"
	"errors"
	"io"

	"github.com/videohub/backend/internal/models"
)

var (
	ErrNotFound     = errors.New("video not found")
	ErrAlreadyLiked = errors.New("video is already liked")
	ErrNotLiked     = errors.New("video has not been liked before")
)

// DataURLFunc builds the payload URL of a video from its newly assigned ID.
type DataURLFunc func(id int64) string

// Store persists video records keyed by ID. Implementations must apply
// Like and Unlike atomically so that Likes always equals len(LikedBy).
type Store interface {
	// Create assigns the next ID to v and persists it with no likes. When dataURL
	// is non-nil, v.DataURL is set from the new ID in the same write.
	Create(ctx context.Context, v *models.Video, dataURL DataURLFunc) error
	// Update overwrites the metadata of an existing record. Like state is left untouched.
	Update(ctx context.Context, v *models.Video) error
	// SetContentTypeIfEmpty records contentType on a video that has none and
	// returns the content type the video ends up with. No other field is written.
	SetContentTypeIfEmpty(ctx context.Context, id int64, contentType string) (string, error)
	GetByID(ctx context.Context, id int64) (*models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	FindByTitle(ctx context.Context, title string) ([]models.Video, error)
	FindByDurationLessThan(ctx context.Context, limit int64) ([]models.Video, error)
	// Like adds username to the liked set and returns the new like count.
	Like(ctx context.Context, id int64, username string) (int, error)
	// Unlike removes username from the liked set and returns the new like count.
	Unlike(ctx context.Context, id int64, username string) (int, error)
}

// DataStore keeps binary video payloads keyed by video ID.
type DataStore interface {
	Save(ctx context.Context, id int64, contentType string, r io.Reader, size int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	// Open returns the payload and the content type it was saved with. Caller must close the body.
	Open(ctx context.Context, id int64) (io.ReadCloser, string, error)
}

func filterVideos(list []models.Video, keep func(*models.Video) bool) []models.Video {
	out := make([]models.Video, 0)
	for i := range list {
		if keep(&list[i]) {
			out = append(out, list[i])
		}
	}
	return out
}
