package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthToken is the opaque bearer credential for a user. Exactly one token
// exists per user (uniqueIndex on UserID); it is created on first successful
// login and reused afterwards. Tokens do not expire.
type AuthToken struct {
	Key       string    `gorm:"primaryKey;size:64" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (AuthToken) TableName() string {
	return "auth_tokens"
}
