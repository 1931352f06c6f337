package testutil

import (
	"context"

	"gorm.io/gorm"
)

// PassthroughTx runs fn immediately with a nil handle. It pairs with
// repository stubs whose WithTx returns the stub itself.
type PassthroughTx struct {
	Calls int
}

// WithinTx implements repository.Transactor.
func (p *PassthroughTx) WithinTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	p.Calls++
	return fn(nil)
}
