package videos

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/videohub/backend/internal/models"
)

// Data is an open video payload.
type Data struct {
	Body        io.ReadCloser
	ContentType string
}

// Service implements video add/search, payload transfer and likes on top of a Store and a DataStore.
type Service struct {
	store  Store
	data   DataStore
	logger *zap.Logger
}

// NewService creates a video service.
func NewService(store Store, data DataStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, data: data, logger: logger}
}

// DataURL returns the canonical payload URL of a video: {base}/video/{id}/data.
func DataURL(baseURL string, id int64) string {
	return baseURL + "/video/" + strconv.FormatInt(id, 10) + "/data"
}

// Add creates a video when v.ID is 0, otherwise updates the metadata of an existing one.
// Like state is server-owned: a new video starts with no likes, an update keeps the stored ones.
func (s *Service) Add(ctx context.Context, v *models.Video, baseURL string) (*models.Video, error) {
	if v.ID != 0 {
		v.DataURL = DataURL(baseURL, v.ID)
		if err := s.store.Update(ctx, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	err := s.store.Create(ctx, v, func(id int64) string { return DataURL(baseURL, id) })
	if err != nil {
		return nil, err
	}
	s.logger.Info("video added", zap.Int64("video_id", v.ID), zap.String("title", v.Title))
	return v, nil
}

// List returns every video.
func (s *Service) List(ctx context.Context) ([]models.Video, error) {
	return s.store.List(ctx)
}

// GetByID returns one video or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	return s.store.GetByID(ctx, id)
}

// FindByTitle returns videos with exactly this title.
func (s *Service) FindByTitle(ctx context.Context, title string) ([]models.Video, error) {
	return s.store.FindByTitle(ctx, title)
}

// FindByDurationLessThan returns videos with duration strictly below limit.
func (s *Service) FindByDurationLessThan(ctx context.Context, limit int64) ([]models.Video, error) {
	return s.store.FindByDurationLessThan(ctx, limit)
}

// SetData stores the payload of an existing video. When the video has no content type yet,
// contentType is recorded on it; other metadata is not written.
func (s *Service) SetData(ctx context.Context, id int64, r io.Reader, size int64, contentType string) (*models.VideoStatus, error) {
	ct, err := s.store.SetContentTypeIfEmpty(ctx, id, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.data.Save(ctx, id, ct, r, size); err != nil {
		return nil, fmt.Errorf("save video data %d: %w", id, err)
	}
	s.logger.Info("video data stored", zap.Int64("video_id", id), zap.Int64("size", size))
	return &models.VideoStatus{State: models.VideoStateReady}, nil
}

// GetData opens the payload of a video. It returns (nil, nil) when the video exists
// but no payload has been uploaded yet.
func (s *Service) GetData(ctx context.Context, id int64) (*Data, error) {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.data.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check video data %d: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	body, storedType, err := s.data.Open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open video data %d: %w", id, err)
	}
	ct := v.ContentType
	if ct == "" {
		ct = storedType
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Data{Body: body, ContentType: ct}, nil
}

// Like marks the video as liked by username and returns the new like count.
func (s *Service) Like(ctx context.Context, id int64, username string) (int, error) {
	return s.store.Like(ctx, id, username)
}

// Unlike removes the like of username and returns the new like count.
func (s *Service) Unlike(ctx context.Context, id int64, username string) (int, error) {
	return s.store.Unlike(ctx, id, username)
}

// LikedBy returns the usernames that liked the video.
func (s *Service) LikedBy(ctx context.Context, id int64) ([]string, error) {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.LikedBy == nil {
		return []string{}, nil
	}
	return v.LikedBy, nil
}
