package models

import "github.com/google/uuid"

// Tag labels a recipe (e.g. "Vegan"). Tags belong to exactly one user and
// are never visible to anyone else.
type Tag struct {
	Base
	Name   string    `gorm:"not null" json:"name"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Tag) TableName() string {
	return "tags"
}

func (t Tag) String() string {
	return t.Name
}
