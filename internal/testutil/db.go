// Package testutil provides shared test databases and fixtures for backend tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"campusfeed/internal/database"
	"campusfeed/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// OpenDB returns a private in-memory SQLite database with every persistent
// model migrated and foreign keys enforced. The pool holds a single
// connection, so code under test must run its queries on the transaction
// handle it was given.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:campusfeed_%d_%d?mode=memory&cache=shared&_foreign_keys=1",
		time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// CreateUser inserts a user named name with a unique email.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s_%d@campus.test", name, dbSeq.Add(1)),
		PasswordHash: "not-a-real-hash",
		Verified:     true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreatePost inserts a visible post owned by userID.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, title string) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:      userID,
		Title:       title,
		ContentMD:   "body of " + title,
		ContentHTML: "<p>body of " + title + "</p>",
		Category:    models.DefaultCategory,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

// CreateComment inserts a comment with its path already assigned, bypassing
// the service layer.
func CreateComment(t testing.TB, db *gorm.DB, postID, userID uint, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: postID, UserID: userID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if parent != nil {
		c.Path = parent.Path.Child(c.ID)
	} else {
		c.Path = models.RootPath(c.ID)
	}
	c.Depth = c.Path.Depth()
	if err := db.Model(c).Updates(map[string]any{"path": c.Path, "depth": c.Depth}).Error; err != nil {
		t.Fatalf("set comment path: %v", err)
	}
	return c
}

// Count returns the number of rows in model's table matching query.
func Count(t testing.TB, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
