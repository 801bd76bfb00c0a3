// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/storage"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TB is the subset of testing.TB used by the helpers.
type TB interface {
	Helper()
	Fatalf(string, ...any)
	Cleanup(func())
}

// NewTestDB opens a private in-memory SQLite database with the schema migrated.
func NewTestDB(t TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a user with a throwaway password hash.
func SeedUser(t TB, db *gorm.DB, username string, liked ...uint) *models.User {
	t.Helper()
	user := &models.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "not-a-real-hash",
		LikedPosts: models.PostIDList(liked),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedPost inserts a post owned by userID.
func SeedPost(t TB, db *gorm.DB, userID uint, title string) *models.BlogPost {
	t.Helper()
	post := &models.BlogPost{
		Title:       title,
		Description: title + " description",
		Body:        title + " body",
		ImageKey:    uuid.NewString(),
		UserID:      userID,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return post
}

// StoreStub is an in-memory object store with injectable failures.
type StoreStub struct {
	*storage.MemoryStore

	mu        sync.Mutex
	PutErr    error
	GetErr    error
	DeleteErr error
	Deleted   []string
}

// NewStoreStub creates an empty StoreStub.
func NewStoreStub() *StoreStub {
	return &StoreStub{MemoryStore: storage.NewMemoryStore()}
}

func (s *StoreStub) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	return s.MemoryStore.Put(ctx, key, body, size, contentType)
}

func (s *StoreStub) Get(ctx context.Context, key string) (*storage.Object, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	return s.MemoryStore.Get(ctx, key)
}

// Delete records the key even when DeleteErr is set.
func (s *StoreStub) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.Deleted = append(s.Deleted, key)
	s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	return s.MemoryStore.Delete(ctx, key)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
