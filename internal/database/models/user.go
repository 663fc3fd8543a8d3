package models

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	IsStaff      bool   `gorm:"default:false" json:"is_staff"`
	IsSuperuser  bool   `gorm:"default:false" json:"is_superuser"`
}

func (User) TableName() string {
	return "users"
}
