package database

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"campusfeed/internal/config"
	"campusfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db",
		DBPort:     "5432",
		DBUser:     "feed",
		DBPassword: "pw",
		DBName:     "campus_feed",
	}
	assert.Equal(t, "host=db port=5432 user=feed password=pw dbname=campus_feed sslmode=disable", DSN(cfg))

	cfg.DBSSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:unique_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(slog.Default(), 0),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	require.NoError(t, db.Create(&models.User{Name: "A", Email: "a@campus.edu", PasswordHash: "x"}).Error)
	err = db.Create(&models.User{Name: "B", Email: "a@campus.edu", PasswordHash: "x"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
}

func TestIsMissingTable(t *testing.T) {
	assert.True(t, IsMissingTable(errors.New(`ERROR: relation "migration_logs" does not exist`)))
	assert.True(t, IsMissingTable(errors.New("no such table: migration_logs")))
	assert.False(t, IsMissingTable(errors.New("syntax error")))
	assert.False(t, IsMissingTable(nil))
}
