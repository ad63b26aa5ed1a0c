package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/videohub/backend/internal/models"
)

// RedisStore keeps each video as a JSON value and its liked set as a Redis set.
// The like count is always the set cardinality, so SADD/SREM are the only
// mutations needed to like or unlike.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "videosvc"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) seqKey() string           { return s.prefix + ":video:seq" }
func (s *RedisStore) indexKey() string         { return s.prefix + ":video:ids" }
func (s *RedisStore) videoKey(id int64) string { return s.prefix + ":video:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) likesKey(id int64) string { return s.videoKey(id) + ":likes" }

// contentTypeRetries bounds optimistic WATCH retries when setting a content type.
const contentTypeRetries = 10

// Create assigns an ID from the INCR sequence and stores the record.
func (s *RedisStore) Create(ctx context.Context, v *models.Video, dataURL DataURLFunc) error {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("incr video seq: %w", err)
	}
	now := time.Now().UTC()
	v.ID = id
	if dataURL != nil {
		v.DataURL = dataURL(id)
	}
	v.Likes = 0
	v.LikedBy = nil
	v.CreatedAt = now
	v.UpdatedAt = now

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal video: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.videoKey(id), raw, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store video: %w", err)
	}
	return nil
}

// Update overwrites the stored metadata of an existing video.
func (s *RedisStore) Update(ctx context.Context, v *models.Video) error {
	cur, err := s.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	v.CreatedAt = cur.CreatedAt
	v.UpdatedAt = time.Now().UTC()
	v.Likes = cur.Likes
	v.LikedBy = cur.LikedBy

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal video: %w", err)
	}
	if err := s.client.Set(ctx, s.videoKey(v.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("store video: %w", err)
	}
	return nil
}

// SetContentTypeIfEmpty rewrites the record under WATCH so a concurrent
// Update is never overwritten with stale metadata.
func (s *RedisStore) SetContentTypeIfEmpty(ctx context.Context, id int64, contentType string) (string, error) {
	key := s.videoKey(id)
	var current string
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("get video: %w", err)
		}
		var v models.Video
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("unmarshal video %d: %w", id, err)
		}
		current = v.ContentType
		if current != "" || contentType == "" {
			return nil
		}
		v.ContentType = contentType
		v.UpdatedAt = time.Now().UTC()
		raw, err = json.Marshal(&v)
		if err != nil {
			return fmt.Errorf("marshal video: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		if err == nil {
			current = contentType
		}
		return err
	}

	for i := 0; i < contentTypeRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return "", err
			}
			return "", fmt.Errorf("set content type: %w", err)
		}
		return current, nil
	}
	return "", fmt.Errorf("set content type of video %d: too much contention", id)
}

// GetByID loads a video and its liked set.
func (s *RedisStore) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	raw, err := s.client.Get(ctx, s.videoKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	var v models.Video
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal video %d: %w", id, err)
	}
	users, err := s.client.SMembers(ctx, s.likesKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}
	sort.Strings(users)
	v.LikedBy = users
	v.Likes = len(users)
	return &v, nil
}

// List returns every indexed video ordered by ID.
func (s *RedisStore) List(ctx context.Context) ([]models.Video, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list video ids: %w", err)
	}
	list := make([]models.Video, 0, len(ids))
	if len(ids) == 0 {
		return list, nil
	}

	gets := make([]*redis.StringCmd, len(ids))
	counts := make([]*redis.IntCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			id, _ := strconv.ParseInt(raw, 10, 64)
			gets[i] = pipe.Get(ctx, s.videoKey(id))
			counts[i] = pipe.SCard(ctx, s.likesKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load videos: %w", err)
	}
	for i := range ids {
		raw, err := gets[i].Bytes()
		if err != nil {
			continue
		}
		var v models.Video
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal video %s: %w", ids[i], err)
		}
		v.Likes = int(counts[i].Val())
		list = append(list, v)
	}
	models.SortVideos(list)
	return list, nil
}

// FindByTitle scans all videos for an exact title match.
func (s *RedisStore) FindByTitle(ctx context.Context, title string) ([]models.Video, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterVideos(list, func(v *models.Video) bool { return v.Title == title }), nil
}

// FindByDurationLessThan scans all videos for duration < limit.
func (s *RedisStore) FindByDurationLessThan(ctx context.Context, limit int64) ([]models.Video, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterVideos(list, func(v *models.Video) bool { return v.Duration < limit }), nil
}

// Like adds username with SADD; a zero reply means the user was already present.
func (s *RedisStore) Like(ctx context.Context, id int64, username string) (int, error) {
	return s.changeLike(ctx, id, func(pipe redis.Pipeliner) *redis.IntCmd {
		return pipe.SAdd(ctx, s.likesKey(id), username)
	}, ErrAlreadyLiked)
}

// Unlike removes username with SREM; a zero reply means the user was absent.
func (s *RedisStore) Unlike(ctx context.Context, id int64, username string) (int, error) {
	return s.changeLike(ctx, id, func(pipe redis.Pipeliner) *redis.IntCmd {
		return pipe.SRem(ctx, s.likesKey(id), username)
	}, ErrNotLiked)
}

func (s *RedisStore) changeLike(ctx context.Context, id int64, op func(redis.Pipeliner) *redis.IntCmd, unchanged error) (int, error) {
	n, err := s.client.Exists(ctx, s.videoKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("check video: %w", err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}

	var changed *redis.IntCmd
	var count *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		changed = op(pipe)
		count = pipe.SCard(ctx, s.likesKey(id))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update likes: %w", err)
	}
	likes := int(count.Val())
	if changed.Val() == 0 {
		return likes, unchanged
	}
	return likes, nil
}
