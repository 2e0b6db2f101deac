package service

import (
	"context"

	"penfeed/internal/models"
	"penfeed/internal/repository"
)

type FollowService struct {
	follows repository.FollowRepository
	users   repository.UserRepository
}

type FollowInput struct {
	UserID         uint
	AuthorUsername string
}

// FollowResult reports the followed author and whether a new edge was stored.
type FollowResult struct {
	Author  *models.User
	Created bool
}

func NewFollowService(follows repository.FollowRepository, users repository.UserRepository) *FollowService {
	return &FollowService{follows: follows, users: users}
}

// Follow subscribes the caller to an author. Repeating it or following yourself is a no-op.
func (s *FollowService) Follow(ctx context.Context, in FollowInput) (*FollowResult, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	author, err := lookupUsername(ctx, s.users, in.AuthorUsername)
	if err != nil {
		return nil, err
	}
	if author.ID == in.UserID {
		return &FollowResult{Author: author}, nil
	}

	created, err := s.follows.Create(ctx, in.UserID, author.ID)
	if err != nil {
		return nil, authorGone(err)
	}
	return &FollowResult{Author: author, Created: created}, nil
}

// Unfollow removes the edge if present.
func (s *FollowService) Unfollow(ctx context.Context, in FollowInput) (*models.User, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	author, err := lookupUsername(ctx, s.users, in.AuthorUsername)
	if err != nil {
		return nil, err
	}
	if err := s.follows.Delete(ctx, in.UserID, author.ID); err != nil {
		return nil, err
	}
	return author, nil
}
