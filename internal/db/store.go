package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store runs catalog queries against a gorm handle. A Store obtained from Tx is bound to that transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Tx is a Store inside an open transaction. Hooks registered with OnCommit run after a successful commit
// and are dropped on rollback.
type Tx struct {
	Store
	afterCommit []func()
}

// OnCommit registers fn to run once the enclosing transaction has committed.
func (t *Tx) OnCommit(fn func()) {
	if fn == nil {
		return
	}
	t.afterCommit = append(t.afterCommit, fn)
}

// WithTx joins the already open transaction.
func (t *Tx) WithTx(_ context.Context, fn func(tx *Tx) error) error {
	return fn(t)
}

// WithTx runs fn in a transaction. fn returning an error rolls back and skips the commit hooks.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not initialized")
	}

	var hooks []func()
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		tx := &Tx{Store: Store{db: gtx}}
		if err := fn(tx); err != nil {
			return err
		}
		hooks = tx.afterCommit
		return nil
	})
	if err != nil {
		return err
	}

	for _, hook := range hooks {
		hook()
	}
	return nil
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

// ListParams bounds list queries.
type ListParams struct {
	Offset int
	Limit  int
}

func (p ListParams) apply(q *gorm.DB) *gorm.DB {
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	return q
}
