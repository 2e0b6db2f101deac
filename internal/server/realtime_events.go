package server

import (
	"context"

	"penfeed/internal/models"
	"penfeed/internal/notifications"
)

// publishPostCreated announces a new post once to every live viewer. Clients that only
// want followed authors filter on payload.author.
func (s *Server) publishPostCreated(ctx context.Context, post *models.Post) {
	s.publisher.Broadcast(ctx, notifications.PostCreatedEvent(post))
}

// publishCommentCreated tells the post author about a comment left by someone else.
func (s *Server) publishCommentCreated(ctx context.Context, comment *models.Comment) {
	if comment.Post == nil || comment.Post.AuthorID == comment.AuthorID {
		return
	}
	s.publisher.ToUsers(ctx, notifications.CommentCreatedEvent(comment), comment.Post.AuthorID)
}

func (s *Server) publishFollowed(ctx context.Context, follower *models.User, authorID uint) {
	s.publisher.ToUsers(ctx, notifications.FollowedEvent(follower), authorID)
}
