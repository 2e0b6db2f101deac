package service

import (
	"context"
	"unicode/utf8"

	"penfeed/internal/models"
	"penfeed/internal/repository"
)

const maxCommentLen = 10000

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
}

type AddCommentInput struct {
	PostID   uint
	AuthorID uint
	Text     string
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository) *CommentService {
	return &CommentService{comments: comments, posts: posts}
}

// AddComment attaches a comment to an existing post. The returned comment carries
// its author and, in Post, the commented post.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if err := requireUser(in.AuthorID); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	text, err := requiredText("text", in.Text)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewFieldError("text", "Comment too long (max 10000 characters)")
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: in.AuthorID,
		Text:     text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, authorGone(err)
	}

	created, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	created.Post = post
	return created, nil
}
