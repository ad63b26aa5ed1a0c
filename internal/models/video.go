package models

import (
	"sort"
	"time"
)

// VideoState is the payload state reported after an upload.
type VideoState string

const (
	VideoStateReady VideoState = "READY"
)

// Video is a video record. ID 0 means "not yet assigned".
type Video struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Duration    int64     `json:"duration"`
	Location    string    `json:"location,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	DataURL     string    `json:"data_url"`
	Likes       int       `json:"likes"`
	LikedBy     []string  `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VideoStatus is returned after a payload upload. It is never persisted.
type VideoStatus struct {
	State VideoState `json:"state"`
}

// HasLiked reports whether username is in the liked set.
func (v *Video) HasLiked(username string) bool {
	for _, u := range v.LikedBy {
		if u == username {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (v *Video) Clone() *Video {
	c := *v
	c.LikedBy = append([]string(nil), v.LikedBy...)
	return &c
}

// SortVideos orders videos by ID ascending.
func SortVideos(list []Video) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
