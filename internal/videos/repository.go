package videos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videohub/backend/internal/models"
)

const videoColumns = `id, title, duration, COALESCE(location,''), COALESCE(subject,''), COALESCE(content_type,''), COALESCE(data_url,''), likes, created_at, updated_at`

// Repository is the PostgreSQL video store.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new video. The ID is drawn from the videos sequence first so
// the data URL is part of the single insert.
func (r *Repository) Create(ctx context.Context, v *models.Video, dataURL DataURLFunc) error {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('videos', 'id'))`).Scan(&id); err != nil {
		return fmt.Errorf("next video id: %w", err)
	}
	url := v.DataURL
	if dataURL != nil {
		url = dataURL(id)
	}
	const q = `INSERT INTO videos (id, title, duration, location, subject, content_type, data_url, likes)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), 0)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, id, v.Title, v.Duration, v.Location, v.Subject, v.ContentType, url).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	v.ID = id
	v.DataURL = url
	v.Likes = 0
	v.LikedBy = nil
	return nil
}

// Update sets metadata columns of an existing video.
func (r *Repository) Update(ctx context.Context, v *models.Video) error {
	const q = `UPDATE videos SET title = $1, duration = $2, location = NULLIF($3,''), subject = NULLIF($4,''),
		content_type = NULLIF($5,''), data_url = NULLIF($6,''), updated_at = NOW()
		WHERE id = $7
		RETURNING likes, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, v.Title, v.Duration, v.Location, v.Subject, v.ContentType, v.DataURL, v.ID).
		Scan(&v.Likes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update video: %w", err)
	}
	likedBy, err := r.likedBy(ctx, v.ID)
	if err != nil {
		return err
	}
	v.LikedBy = likedBy
	return nil
}

// SetContentTypeIfEmpty fills content_type only when it is unset.
func (r *Repository) SetContentTypeIfEmpty(ctx context.Context, id int64, contentType string) (string, error) {
	const q = `UPDATE videos SET content_type = COALESCE(NULLIF(content_type,''), NULLIF($1::text,'')),
		updated_at = CASE WHEN COALESCE(content_type,'') = '' AND $1::text <> '' THEN NOW() ELSE updated_at END
		WHERE id = $2
		RETURNING COALESCE(content_type,'')`
	var ct string
	if err := r.pool.QueryRow(ctx, q, contentType, id).Scan(&ct); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("set content type: %w", err)
	}
	return ct, nil
}

// GetByID returns a video with its liked set.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	var v models.Video
	err := r.pool.QueryRow(ctx, q, id).Scan(&v.ID, &v.Title, &v.Duration, &v.Location, &v.Subject, &v.ContentType, &v.DataURL, &v.Likes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	if v.LikedBy, err = r.likedBy(ctx, id); err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns all videos ordered by ID.
func (r *Repository) List(ctx context.Context) ([]models.Video, error) {
	return r.query(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY id`)
}

// FindByTitle returns videos with exactly this title.
func (r *Repository) FindByTitle(ctx context.Context, title string) ([]models.Video, error) {
	return r.query(ctx, `SELECT `+videoColumns+` FROM videos WHERE title = $1 ORDER BY id`, title)
}

// FindByDurationLessThan returns videos with duration < limit.
func (r *Repository) FindByDurationLessThan(ctx context.Context, limit int64) ([]models.Video, error) {
	return r.query(ctx, `SELECT `+videoColumns+` FROM videos WHERE duration < $1 ORDER BY id`, limit)
}

// Like records a like inside a transaction holding the video row lock.
func (r *Repository) Like(ctx context.Context, id int64, username string) (int, error) {
	return r.changeLike(ctx, id, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO video_likes (video_id, username) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, username)
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyLiked
		}
		return nil
	})
}

// Unlike removes a like inside a transaction holding the video row lock.
func (r *Repository) Unlike(ctx context.Context, id int64, username string) (int, error) {
	return r.changeLike(ctx, id, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM video_likes WHERE video_id = $1 AND username = $2`, id, username)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotLiked
		}
		return nil
	})
}

func (r *Repository) changeLike(ctx context.Context, id int64, change func(pgx.Tx) error) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var likes int
	err = tx.QueryRow(ctx, `SELECT likes FROM videos WHERE id = $1 FOR UPDATE`, id).Scan(&likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("lock video: %w", err)
	}
	if err := change(tx); err != nil {
		return likes, err
	}
	const recount = `UPDATE videos SET likes = (SELECT COUNT(*) FROM video_likes WHERE video_id = $1), updated_at = NOW()
		WHERE id = $1 RETURNING likes`
	if err := tx.QueryRow(ctx, recount, id).Scan(&likes); err != nil {
		return 0, fmt.Errorf("update like count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return likes, nil
}

func (r *Repository) likedBy(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT username FROM video_likes WHERE video_id = $1 ORDER BY username`, id)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()
	list := make([]models.Video, 0)
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Duration, &v.Location, &v.Subject, &v.ContentType, &v.DataURL, &v.Likes, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
