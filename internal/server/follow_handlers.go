package server

import (
	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// FollowAuthor subscribes the caller to an author. Following twice, or following
// yourself, changes nothing.
func (s *Server) FollowAuthor(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	result, err := s.followService.Follow(c.UserContext(), service.FollowInput{
		UserID:         userID,
		AuthorUsername: c.Params("username"),
	})
	if err != nil {
		return respondError(c, err)
	}

	if result.Created {
		follower := &models.User{ID: userID}
		if claims := middleware.Claims(c); claims != nil {
			follower.Username = claims.Username
		}
		s.publishFollowed(c.UserContext(), follower, result.Author.ID)
	}

	return respondMutation(c, fiber.StatusOK, followPath, fiber.Map{
		"author":    result.Author,
		"following": result.Author.ID != userID,
	})
}

func (s *Server) UnfollowAuthor(c *fiber.Ctx) error {
	author, err := s.followService.Unfollow(c.UserContext(), service.FollowInput{
		UserID:         middleware.UserID(c),
		AuthorUsername: c.Params("username"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondMutation(c, fiber.StatusOK, followPath, fiber.Map{
		"author":    author,
		"following": false,
	})
}
