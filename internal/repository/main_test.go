package repository

import (
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB returns a gorm handle speaking the Postgres dialect to sqlmock.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

type repos struct {
	db    *gorm.DB
	users UserRepository
	posts PostRepository
	likes LikeRepository
}

func setupRepos(t *testing.T) repos {
	db := testutil.NewTestDB(t)
	c := cache.New(nil)
	return repos{
		db:    db,
		users: NewUserRepository(db, c),
		posts: NewPostRepository(db, c),
		likes: NewLikeRepository(db, c),
	}
}
