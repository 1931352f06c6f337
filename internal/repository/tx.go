// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"campusfeed/internal/models"

	"gorm.io/gorm"
)

// Transactor runs fn inside a database transaction. Every repository offers
// WithTx so the same handle can be threaded through all writes of one
// operation.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor returns a Transactor over db.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

// notFoundOr maps gorm.ErrRecordNotFound to a NotFound AppError and wraps
// anything else as an internal error.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

func bindTx(current, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return current
	}
	return tx
}
