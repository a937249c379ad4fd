package data

import (
	"database/sql"

	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// Repositories contains all repositories backed by the SQLite database
type Repositories struct {
	db *sql.DB

	Message repo.MessageRepo
	User    repo.UserRepo
	Thread  repo.ThreadRepo
}

// NewRepositories opens the database and creates all repositories
func NewRepositories(dbPath string, busyTimeoutMS int) (*Repositories, error) {
	db, err := OpenDB(dbPath, busyTimeoutMS)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		db:      db,
		Message: NewMessageRepo(db),
		User:    NewUserRepo(db),
		Thread:  NewThreadRepo(db),
	}, nil
}

// Close closes the database
func (r *Repositories) Close() error {
	return r.db.Close()
}
