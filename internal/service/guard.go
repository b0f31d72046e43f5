// Package service holds checks shared by the domain services.
package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/match-relay/internal/db"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/repository"
)

// Actor loads the user performing an action.
// Missing profile → ErrNoProfile, banned → ErrBanned.
func Actor(ctx context.Context, profiles *repository.ProfileRepository, userID uint64) (*db.User, error) {
	u, err := profiles.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNoProfile
	}
	if err != nil {
		return nil, err
	}
	if u.IsBanned {
		return nil, svcErr.ErrBanned
	}
	return u, nil
}

// Target loads the user an action is aimed at.
// Missing → ErrUserNotFound, banned → ErrUserUnavailable.
func Target(ctx context.Context, profiles *repository.ProfileRepository, userID uint64) (*db.User, error) {
	u, err := profiles.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.IsBanned {
		return nil, svcErr.ErrUserUnavailable
	}
	return u, nil
}
