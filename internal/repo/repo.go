package repo

import (
	"context"

	"gorm.io/gorm"
)

type GormRepo struct{ DB *gorm.DB }

// Session is bound to a single pooled connection for the duration of one
// WithSession call.
type Session struct{ db *gorm.DB }

// WithSession checks out one connection, hands it to fn and releases it on
// return, whether fn succeeds, fails or panics. Sessions must not be nested.
func (r *GormRepo) WithSession(ctx context.Context, fn func(s *Session) error) error {
	return r.DB.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		return fn(&Session{db: tx.Session(&gorm.Session{NewDB: true})})
	})
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
