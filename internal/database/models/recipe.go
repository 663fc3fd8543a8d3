package models

import "github.com/google/uuid"

type Recipe struct {
	Base
	Title       string    `gorm:"not null" json:"title"`
	TimeMinutes int       `json:"time_minutes"`
	Price       float64   `json:"price"`
	Link        string    `json:"link"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`

	// ImageKey is the storage key of the attached image, empty until an
	// image has been uploaded.
	ImageKey string `json:"-"`

	Tags        []Tag        `gorm:"many2many:recipe_tags" json:"tags,omitempty"`
	Ingredients []Ingredient `gorm:"many2many:recipe_ingredients" json:"ingredients,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Recipe) TableName() string {
	return "recipes"
}

func (r Recipe) String() string {
	return r.Title
}
