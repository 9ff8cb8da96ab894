// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
// The chat flow never touches users; the functions exist so the store exposes
// a complete CRUD surface for the account table.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pmarques/go-drops-backend/internal/domain"
)

// CreateUser inserts a new user row. The id is database-assigned.
func CreateUser(ctx context.Context, db *gorm.DB, username, password string) (*domain.User, error) {
	u := &domain.User{
		Username: username,
		Password: password,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id. Returns (nil, nil) when no row exists.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by username. Returns (nil, nil) when no
// row exists.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
