// Package models contains data structures for the application's domain models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PostIDList is an ordered list of blog post IDs stored as a JSON text column.
// Duplicates are kept.
type PostIDList []uint

// GormDataType stores the list as plain text on every dialect.
func (PostIDList) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer
func (l PostIDList) Value() (driver.Value, error) {
	if l == nil {
		l = PostIDList{}
	}
	b, err := json.Marshal([]uint(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *PostIDList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = PostIDList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported liked_posts type %T", src)
	}
	if len(raw) == 0 {
		*l = PostIDList{}
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode liked_posts: %w", err)
	}
	*l = PostIDList(ids)
	return nil
}

// Contains reports whether id is present at least once.
func (l PostIDList) Contains(id uint) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// RemoveFirst drops the first occurrence of id and reports whether one was found.
func (l *PostIDList) RemoveFirst(id uint) bool {
	for i, v := range *l {
		if v == id {
			*l = append((*l)[:i:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll drops every occurrence of id and returns how many were removed.
func (l *PostIDList) RemoveAll(id uint) int {
	kept := make(PostIDList, 0, len(*l))
	for _, v := range *l {
		if v != id {
			kept = append(kept, v)
		}
	}
	removed := len(*l) - len(kept)
	*l = kept
	return removed
}

// User represents an Inkwell account.
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Username   string     `gorm:"not null" json:"username"`
	Email      string     `gorm:"not null;index" json:"email"`
	Password   string     `gorm:"not null" json:"-"`
	Admin      bool       `gorm:"not null;default:false" json:"admin"`
	LikedPosts PostIDList `gorm:"column:liked_posts;not null" json:"likedPosts"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// BeforeCreate makes sure a new user starts with an empty liked list.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.LikedPosts == nil {
		u.LikedPosts = PostIDList{}
	}
	return nil
}

// AfterFind normalizes a NULL or empty column to an empty list.
func (u *User) AfterFind(tx *gorm.DB) error {
	if u.LikedPosts == nil {
		u.LikedPosts = PostIDList{}
	}
	return nil
}

// HasLiked reports whether postID is in the user's liked list.
func (u *User) HasLiked(postID uint) bool {
	return u.LikedPosts.Contains(postID)
}
