package service

import (
	"context"
	"strings"

	"penfeed/internal/models"
	"penfeed/internal/repository"
	"penfeed/internal/validation"
)

// GroupService lists groups for everyone and lets staff manage them.
type GroupService struct {
	groups repository.GroupRepository
	users  repository.UserRepository
}

type CreateGroupInput struct {
	ActorID     uint
	Title       string
	Slug        string
	Description string
}

type UpdateGroupInput struct {
	ActorID     uint
	Slug        string
	Title       string
	Description string
}

func NewGroupService(groups repository.GroupRepository, users repository.UserRepository) *GroupService {
	return &GroupService{groups: groups, users: users}
}

func (s *GroupService) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, nil
}

func (s *GroupService) GetGroup(ctx context.Context, slug string) (*models.Group, error) {
	return s.groups.GetBySlug(ctx, slug)
}

func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	if _, err := requireStaff(ctx, s.users, in.ActorID); err != nil {
		return nil, err
	}

	title, err := requiredText("title", in.Title)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(in.Slug)
	if err := validation.ValidateGroupSlug(slug); err != nil {
		return nil, models.NewFieldError("slug", err.Error())
	}

	group := &models.Group{
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroup edits title and description. The slug is immutable.
func (s *GroupService) UpdateGroup(ctx context.Context, in UpdateGroupInput) (*models.Group, error) {
	if _, err := requireStaff(ctx, s.users, in.ActorID); err != nil {
		return nil, err
	}
	group, err := s.groups.GetBySlug(ctx, in.Slug)
	if err != nil {
		return nil, err
	}
	title, err := requiredText("title", in.Title)
	if err != nil {
		return nil, err
	}

	group.Title = title
	group.Description = strings.TrimSpace(in.Description)
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}
