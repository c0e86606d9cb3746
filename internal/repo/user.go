package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/models"
)

func (s *Session) UserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByLogin resolves login as a username first, then as an email.
func (s *Session) UserByLogin(login string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.UserByEmail(login)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Session) UserExists(username, email string) (bool, error) {
	var n int64
	if err := s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Session) CreateUser(u *models.User) error {
	return s.db.Create(u).Error
}

func (s *Session) UpdatePasswordHash(userID uint, hashed string) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).Update("hashed_password", hashed).Error
}
