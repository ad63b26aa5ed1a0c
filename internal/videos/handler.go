package videos

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/videohub/backend/internal/middleware"
	"github.com/videohub/backend/internal/models"
	"github.com/videohub/backend/pkg/response"
)

const (
	// DataParam is the multipart field carrying the video payload.
	DataParam     = "data"
	TitleParam    = "title"
	DurationParam = "duration"
)

// AddRequest is the body for POST /video. ID 0 creates a video, any other ID updates one.
type AddRequest struct {
	ID          int64  `json:"id" binding:"gte=0"`
	Title       string `json:"title"`
	Duration    int64  `json:"duration" binding:"gte=0"`
	Location    string `json:"location"`
	Subject     string `json:"subject"`
	ContentType string `json:"content_type"`
}

// LikeResponse is returned by like and unlike.
type LikeResponse struct {
	ID    int64 `json:"id"`
	Likes int   `json:"likes"`
}

// Handler handles video HTTP endpoints.
type Handler struct {
	svc            *Service
	publicBaseURL  string
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a videos handler. An empty publicBaseURL makes data URLs follow the request host.
func NewHandler(svc *Service, publicBaseURL string, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, publicBaseURL: publicBaseURL, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes mounts the video endpoints on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/video", h.List)
	r.POST("/video", h.Add)
	r.GET("/video/search/findByTitle", h.FindByTitle)
	r.GET("/video/search/findByDurationLessThan", h.FindByDurationLessThan)
	r.GET("/video/:id", h.GetByID)
	r.POST("/video/:id/data", h.SetData)
	r.GET("/video/:id/data", h.GetData)
	r.POST("/video/:id/like", h.Like)
	r.POST("/video/:id/unlike", h.Unlike)
	r.GET("/video/:id/likedby", h.LikedBy)
}

// List handles GET /video.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, 0, err, "list videos")
		return
	}
	response.OK(c, list)
}

// Add handles POST /video.
func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v := &models.Video{
		ID:          req.ID,
		Title:       req.Title,
		Duration:    req.Duration,
		Location:    req.Location,
		Subject:     req.Subject,
		ContentType: req.ContentType,
	}
	stored, err := h.svc.Add(c.Request.Context(), v, h.baseURL(c))
	if err != nil {
		h.fail(c, req.ID, err, "add video")
		return
	}
	response.OK(c, stored)
}

// GetByID handles GET /video/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	v, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err, "get video")
		return
	}
	response.OK(c, v)
}

// FindByTitle handles GET /video/search/findByTitle?title=.
func (h *Handler) FindByTitle(c *gin.Context) {
	title, ok := c.GetQuery(TitleParam)
	if !ok {
		response.BadRequest(c, "missing title")
		return
	}
	list, err := h.svc.FindByTitle(c.Request.Context(), title)
	if err != nil {
		h.fail(c, 0, err, "find by title")
		return
	}
	response.OK(c, list)
}

// FindByDurationLessThan handles GET /video/search/findByDurationLessThan?duration=.
func (h *Handler) FindByDurationLessThan(c *gin.Context) {
	limit, err := strconv.ParseInt(c.Query(DurationParam), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid duration")
		return
	}
	list, err := h.svc.FindByDurationLessThan(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, 0, err, "find by duration")
		return
	}
	response.OK(c, list)
}

// SetData handles POST /video/:id/data (multipart field "data").
func (h *Handler) SetData(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.svc.GetByID(c.Request.Context(), id); err != nil {
		h.fail(c, id, err, "set video data")
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fh, err := c.FormFile(DataParam)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RequestTooLarge(c, "video data too large")
			return
		}
		response.BadRequest(c, "missing video data")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, id, err, "open uploaded data")
		return
	}
	defer f.Close()

	status, err := h.svc.SetData(c.Request.Context(), id, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		h.fail(c, id, err, "set video data")
		return
	}
	response.OK(c, status)
}

// GetData handles GET /video/:id/data. A video without a payload gets 200 with no body.
func (h *Handler) GetData(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	data, err := h.svc.GetData(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err, "get video data")
		return
	}
	if data == nil {
		c.Status(http.StatusOK)
		return
	}
	defer data.Body.Close()
	c.DataFromReader(http.StatusOK, -1, data.ContentType, data.Body, nil)
}

// Like handles POST /video/:id/like.
func (h *Handler) Like(c *gin.Context) {
	h.changeLike(c, h.svc.Like, "like video")
}

// Unlike handles POST /video/:id/unlike.
func (h *Handler) Unlike(c *gin.Context) {
	h.changeLike(c, h.svc.Unlike, "unlike video")
}

// LikedBy handles GET /video/:id/likedby.
func (h *Handler) LikedBy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	users, err := h.svc.LikedBy(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err, "liked by")
		return
	}
	response.OK(c, users)
}

func (h *Handler) changeLike(c *gin.Context, op func(context.Context, int64, string) (int, error), what string) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user := middleware.Username(c)
	if user == "" {
		response.Unauthorized(c, "missing user context")
		return
	}
	likes, err := op(c.Request.Context(), id, user)
	if err != nil {
		h.fail(c, id, err, what)
		return
	}
	response.OK(c, LikeResponse{ID: id, Likes: likes})
}

func (h *Handler) fail(c *gin.Context, id int64, err error, what string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "video id does not exist")
	case errors.Is(err, ErrAlreadyLiked), errors.Is(err, ErrNotLiked):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(what+" failed", zap.Error(err), zap.Int64("video_id", id))
		response.Internal(c, "failed to "+what)
	}
}

func (h *Handler) baseURL(c *gin.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid video id")
		return 0, false
	}
	return id, true
}
