package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConnect_SQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver:    "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "inkwell.db"),
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable("blog_posts"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()
	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), fc, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), fc, errors.New("ignored"))
	assert.Empty(t, buf.String())

	buf.Reset()
	l.LogMode(logger.Info).Trace(ctx, time.Now(), fc, nil)
	assert.Contains(t, buf.String(), "GORM query")
}
