package domain

import (
	"time"

	"github.com/google/uuid"
)

// Video is a catalog record for one uploaded media item.
type Video struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    int64     `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	OwnerID     uuid.UUID `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VideoFields is the set of mutable columns; nil fields are left untouched.
type VideoFields struct {
	Title       *string
	Description *string
	Thumbnail   *string
	IsPublished *bool
}

// OwnerProjection holds the owner display fields shown on a detail view.
type OwnerProjection struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
}

type VideoDetail struct {
	Video
	OwnerDetails OwnerProjection `json:"ownerDetails"`
}

// Asset is the result of storing a binary in the object store.
type Asset struct {
	Ref      string
	Key      string
	Duration float64
}

// Event is broadcast after a catalog mutation commits.
type Event struct {
	Type        string    `json:"type"`
	VideoID     uuid.UUID `json:"videoId"`
	OwnerID     uuid.UUID `json:"ownerId"`
	IsPublished bool      `json:"isPublished"`
	At          time.Time `json:"at"`
}
