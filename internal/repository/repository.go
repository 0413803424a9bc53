package repository

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"match_chat/internal/storage"
)

type Repositories struct {
	Message MessageRepository

	closers []func() error
}

// NewRepositories 建立以 gorm (Postgres / SQLite) 為後端的 repositories
func NewRepositories(db *storage.DB) *Repositories {
	return &Repositories{
		Message: NewMessageRepository(db),
	}
}

// NewBadgerRepositories 建立以 Badger 為後端的 repositories
func NewBadgerRepositories(db *badger.DB) (*Repositories, error) {
	messages, err := NewBadgerMessageRepository(db)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Message: messages,
		closers: []func() error{messages.Close},
	}, nil
}

// Close 釋放 repositories 持有的資源，底層資料庫連線由呼叫端關閉
func (r *Repositories) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
