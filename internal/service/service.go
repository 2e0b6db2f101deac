// Package service implements penfeed's feed queries and mutations on top of the repositories.
// Every operation takes the caller identity explicitly; 0 means anonymous.
package service

import (
	"context"
	"errors"
	"strings"

	"penfeed/internal/models"
	"penfeed/internal/repository"
)

const requiredMessage = "This field is required."

func requireUser(userID uint) error {
	if userID == 0 {
		return models.NewUnauthenticatedError("Authentication required")
	}
	return nil
}

// authorGone turns an insert that lost its author row into Unauthenticated. Every other
// reference is loaded before the insert, so a missing row left at that point is the caller.
func authorGone(err error) error {
	if errors.Is(err, repository.ErrMissingReference) {
		return models.NewUnauthenticatedError("Authentication required")
	}
	return err
}

// requireStaff loads the caller and fails unless it is a staff account.
func requireStaff(ctx context.Context, users repository.UserRepository, userID uint) (*models.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthenticatedError("Authentication required")
		}
		return nil, err
	}
	if !user.IsStaff {
		return nil, models.NewForbiddenError("Staff access required")
	}
	return user, nil
}

// requiredText trims s and returns a field error when nothing is left.
func requiredText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", models.NewFieldError(field, requiredMessage)
	}
	return s, nil
}

// lookupUsername resolves a username to a user or NotFound.
func lookupUsername(ctx context.Context, users repository.UserRepository, username string) (*models.User, error) {
	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}
