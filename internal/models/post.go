package models

import "time"

// BlogPost is a post with one attached image stored in the object store.
type BlogPost struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	ImageKey    string    `gorm:"not null" json:"imageKey"`
	UserID      uint      `gorm:"not null;index" json:"userId"`
	LikeCount   int       `gorm:"not null;default:0" json:"likeCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName pins the table name used by every driver.
func (BlogPost) TableName() string {
	return "blog_posts"
}

// IsOwnedBy reports whether userID owns the post.
func (p *BlogPost) IsOwnedBy(userID uint) bool {
	return p.UserID == userID
}

// AllModels lists every model handled by AutoMigrate.
func AllModels() []any {
	return []any{&User{}, &BlogPost{}}
}
