package models

import "github.com/google/uuid"

// Ingredient has the same shape and ownership rules as Tag.
type Ingredient struct {
	Base
	Name   string    `gorm:"not null" json:"name"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Ingredient) TableName() string {
	return "ingredients"
}

func (i Ingredient) String() string {
	return i.Name
}
