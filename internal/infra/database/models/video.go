package models

import (
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string    `json:"title" gorm:"type:text;not null;index"`
	Description string    `json:"description" gorm:"type:text;not null"`
	VideoFile   string    `json:"videoFile" gorm:"type:text;not null"`
	Thumbnail   string    `json:"thumbnail" gorm:"type:text;not null"`
	Duration    int64     `json:"duration" gorm:"not null"`
	Views       int64     `json:"views" gorm:"not null;default:0"`
	IsPublished bool      `json:"isPublished" gorm:"not null;index"`
	OwnerID     uuid.UUID `json:"owner" gorm:"type:uuid;not null;index"`
	Owner       User      `json:"-" gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:CASCADE;"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"not null"`
}
