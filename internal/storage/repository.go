package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// BaseRepository holds what the device cache and the assignment log share.
type BaseRepository struct {
	db  *DB
	now func() time.Time
}

// NewBaseRepository wraps db with a UTC wall clock.
func NewBaseRepository(db *DB) BaseRepository {
	return BaseRepository{db: db, now: time.Now}
}

// DB returns the underlying database connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Now is the timestamp written to fetched_at and submitted_at columns.
func (r *BaseRepository) Now() time.Time {
	return r.now().UTC()
}

// Transaction runs fn in a transaction on the repository's database.
func (r *BaseRepository) Transaction(fn func(tx *sql.Tx) error) error {
	return r.db.Transaction(fn)
}

// GenerateID returns a random record ID.
func GenerateID() string {
	return uuid.NewString()
}
