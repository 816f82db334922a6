package model

import (
	"time"
)

// Recipe is kept as a cascade target for account deletion. Recipe CRUD
// lives outside this service.
type Recipe struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"not null" json:"title"`
	ImageURL  string    `json:"image_url"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Recipe) TableName() string {
	return "recipes"
}
