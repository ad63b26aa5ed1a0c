package videos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/videohub/backend/internal/auth"
	"github.com/videohub/backend/internal/middleware"
	"github.com/videohub/backend/internal/models"
	"github.com/videohub/backend/pkg/storage"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	svc := NewService(NewMemoryStore(), fs, zap.NewNop())
	h := NewHandler(svc, "", maxUpload, zap.NewNop())

	jwtService := auth.NewJWTService("test-secret", 1)
	router := gin.New()
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	h.RegisterRoutes(api)
	return &testServer{t: t, router: router, jwt: jwtService}
}

func (s *testServer) do(method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		token, err := s.jwt.Generate(user)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(method, path, user string, payload interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(s.t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(method, path, user, body, "application/json")
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (s *testServer) addVideo(title string, duration int64) models.Video {
	s.t.Helper()
	w := s.doJSON(http.MethodPost, "/video", "alice", AddRequest{Title: title, Duration: duration, ContentType: "video/mp4"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.Video](s.t, w).Data
}

func multipartBody(t *testing.T, field, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="video.bin"`, field))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandlerRequiresToken(t *testing.T) {
	s := newTestServer(t, 0)
	w := s.do(http.MethodGet, "/video", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/video", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerAddListGet(t *testing.T) {
	s := newTestServer(t, 0)

	first := s.addVideo("one", 10)
	second := s.addVideo("two", 20)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "http://example.com/video/1/data", first.DataURL)

	w := s.doJSON(http.MethodGet, "/video", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Video](t, w).Data
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Title)

	w = s.doJSON(http.MethodGet, "/video/2", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "two", decode[models.Video](t, w).Data.Title)

	w = s.doJSON(http.MethodGet, "/video/99", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(http.MethodGet, "/video/abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPost, "/video", "alice", map[string]interface{}{"duration": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	untitled := decode[models.Video](t, w).Data
	assert.Equal(t, int64(3), untitled.ID)
	assert.Empty(t, untitled.Title)

	w = s.doJSON(http.MethodPost, "/video", "alice", map[string]interface{}{"title": "neg", "duration": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/video", "alice", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPost, "/video", "alice", AddRequest{ID: 50, Title: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerUsesForwardedProto(t *testing.T) {
	s := newTestServer(t, 0)
	raw, _ := json.Marshal(AddRequest{Title: "x"})
	req := httptest.NewRequest(http.MethodPost, "/video", bytes.NewReader(raw))
	req.Host = "videos.local:9000"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	token, err := s.jwt.Generate("alice")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://videos.local:9000/video/1/data", decode[models.Video](t, w).Data.DataURL)
}

func TestHandlerLikeFlow(t *testing.T) {
	s := newTestServer(t, 0)
	v := s.addVideo("likeable", 10)
	path := fmt.Sprintf("/video/%d", v.ID)

	w := s.doJSON(http.MethodPost, path+"/like", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[LikeResponse](t, w).Data.Likes)

	w = s.doJSON(http.MethodPost, path+"/like", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPost, path+"/like", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[LikeResponse](t, w).Data.Likes)

	w = s.doJSON(http.MethodGet, path+"/likedby", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"alice", "bob"}, decode[[]string](t, w).Data)

	w = s.doJSON(http.MethodPost, path+"/unlike", "carol", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPost, path+"/unlike", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[LikeResponse](t, w).Data.Likes)

	w = s.doJSON(http.MethodGet, path, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[models.Video](t, w).Data.Likes)

	for _, p := range []string{"/video/404/like", "/video/404/unlike"} {
		w = s.doJSON(http.MethodPost, p, "alice", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, p)
	}
	w = s.doJSON(http.MethodGet, "/video/404/likedby", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerSearch(t *testing.T) {
	s := newTestServer(t, 0)
	s.addVideo("cats", 5)
	s.addVideo("dogs", 50)
	s.addVideo("cats", 500)

	w := s.doJSON(http.MethodGet, "/video/search/findByTitle?title=cats", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Video](t, w).Data, 2)

	w = s.doJSON(http.MethodGet, "/video/search/findByTitle?title=birds", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Video](t, w).Data)

	w = s.doJSON(http.MethodGet, "/video/search/findByDurationLessThan?duration=50", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]models.Video](t, w).Data
	require.Len(t, found, 1)
	assert.Equal(t, int64(5), found[0].Duration)

	w = s.doJSON(http.MethodGet, "/video/search/findByDurationLessThan?duration=soon", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodGet, "/video/search/findByTitle", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerDataRoundTrip(t *testing.T) {
	s := newTestServer(t, 0)
	v := s.addVideo("movie", 90)
	path := fmt.Sprintf("/video/%d/data", v.ID)

	w := s.do(http.MethodGet, path, "alice", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())

	payload := bytes.Repeat([]byte("frame-"), 10000)
	body, ct := multipartBody(t, DataParam, "video/mp4", payload)
	w = s.do(http.MethodPost, path, "alice", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.VideoStateReady, decode[models.VideoStatus](t, w).Data.State)

	w = s.do(http.MethodGet, path, "alice", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, payload, w.Body.Bytes())
}

func TestHandlerDataErrors(t *testing.T) {
	s := newTestServer(t, 1024)
	v := s.addVideo("small", 1)
	path := fmt.Sprintf("/video/%d/data", v.ID)

	body, ct := multipartBody(t, DataParam, "video/mp4", []byte("x"))
	w := s.do(http.MethodPost, "/video/77/data", "alice", body, ct)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/video/77/data", "alice", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body, ct = multipartBody(t, "wrong", "video/mp4", []byte("x"))
	w = s.do(http.MethodPost, path, "alice", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartBody(t, DataParam, "video/mp4", bytes.Repeat([]byte("x"), 4096))
	w = s.do(http.MethodPost, path, "alice", body, ct)
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, w.Code)

	w = s.do(http.MethodPost, path, "alice", strings.NewReader("raw"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
