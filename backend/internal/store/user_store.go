package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"notecollab/backend/internal/entity"
	"notecollab/backend/internal/notes"
)

type UserStore struct{ db *gorm.DB }

var _ notes.UserDirectory = (*UserStore)(nil)

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindOne 按邮箱查 userId
func (s *UserStore) FindOne(ctx context.Context, email string) (string, error) {
	var u entity.User
	err := s.db.WithContext(ctx).Select("user_id").Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notes.ErrUserNotFound
		}
		return "", err
	}
	return u.UserID, nil
}
