package models

import (
	"time"

	"github.com/google/uuid"
)

// User is owned by the account service; only the projection columns are read here.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Username  string    `json:"username" gorm:"type:text;uniqueIndex"`
	Avatar    string    `json:"avatar" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}
