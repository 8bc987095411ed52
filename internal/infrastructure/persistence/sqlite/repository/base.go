package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sentinel/internal/ports"
)

// gormStore carries the shared db handle and transaction plumbing for every
// store in this package.
type gormStore struct {
	db *gorm.DB
}

func (s gormStore) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return s.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
