package service

import (
	"context"

	"penfeed/internal/models"
	"penfeed/internal/repository"
)

// PostService creates, edits and deletes posts.
type PostService struct {
	posts  repository.PostRepository
	groups repository.GroupRepository
}

// ImageUpload stores a pending image and returns its reference. Services call it only
// once the post is authorized and valid.
type ImageUpload func(ctx context.Context) (string, error)

type CreatePostInput struct {
	AuthorID uint
	Text     string
	GroupID  *uint
	Image    string
	// Upload, when set, replaces Image.
	Upload ImageUpload
}

type EditPostInput struct {
	PostID   uint
	EditorID uint
	Text     string
	GroupID  *uint
	// Image replaces the current image when set; an empty string clears it.
	Image *string
	// Upload, when set, wins over Image.
	Upload ImageUpload
}

type DeletePostInput struct {
	PostID  uint
	ActorID uint
}

func NewPostService(posts repository.PostRepository, groups repository.GroupRepository) *PostService {
	return &PostService{posts: posts, groups: groups}
}

// checkGroup turns an unknown group id into a field error.
func (s *PostService) checkGroup(ctx context.Context, groupID *uint) error {
	if groupID == nil {
		return nil
	}
	if _, err := s.groups.GetByID(ctx, *groupID); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewFieldError("group", "Select a valid group.")
		}
		return err
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := requireUser(in.AuthorID); err != nil {
		return nil, err
	}
	text, err := requiredText("text", in.Text)
	if err != nil {
		return nil, err
	}
	if err := s.checkGroup(ctx, in.GroupID); err != nil {
		return nil, err
	}

	image := in.Image
	if in.Upload != nil {
		if image, err = in.Upload(ctx); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		Text:     text,
		AuthorID: in.AuthorID,
		GroupID:  in.GroupID,
		Image:    image,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, authorGone(err)
	}
	return s.posts.GetByID(ctx, post.ID)
}

// GetPostForEdit returns the post when editorID may edit it.
func (s *PostService) GetPostForEdit(ctx context.Context, postID, editorID uint) (*models.Post, error) {
	if err := requireUser(editorID); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != editorID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}
	return post, nil
}

// EditPost rewrites text and group in place. The post keeps its id, author and created_at.
func (s *PostService) EditPost(ctx context.Context, in EditPostInput) (*models.Post, error) {
	post, err := s.GetPostForEdit(ctx, in.PostID, in.EditorID)
	if err != nil {
		return nil, err
	}
	text, err := requiredText("text", in.Text)
	if err != nil {
		return nil, err
	}
	if err := s.checkGroup(ctx, in.GroupID); err != nil {
		return nil, err
	}

	switch {
	case in.Upload != nil:
		ref, err := in.Upload(ctx)
		if err != nil {
			return nil, err
		}
		post.Image = ref
	case in.Image != nil:
		post.Image = *in.Image
	}
	post.Text = text
	post.GroupID = in.GroupID
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID)
}

// DeletePost removes a post and its comments. Author only.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.GetPostForEdit(ctx, in.PostID, in.ActorID)
	if err != nil {
		if models.IsCode(err, models.CodeForbidden) {
			return models.NewForbiddenError("You can only delete your own posts")
		}
		return err
	}
	return s.posts.Delete(ctx, post.ID)
}
