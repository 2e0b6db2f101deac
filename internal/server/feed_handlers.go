package server

import (
	"penfeed/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Index returns one page of every post, newest first. Pages are served from the cache.
func (s *Server) Index(c *fiber.Ctx) error {
	page, err := s.feedService.Index(c.UserContext(), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GroupFeed returns a group and one page of its posts.
func (s *Server) GroupFeed(c *fiber.Ctx) error {
	feed, err := s.feedService.Group(c.UserContext(), c.Params("slug"), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

// Profile returns an author's posts and whether the caller follows them.
func (s *Server) Profile(c *fiber.Ctx) error {
	feed, err := s.feedService.Profile(c.UserContext(), c.Params("username"), c.Query("page"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

func (s *Server) PostDetail(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post")
	if err != nil {
		return respondError(c, err)
	}
	detail, err := s.feedService.PostDetail(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// FollowFeed returns posts by the authors the caller follows.
func (s *Server) FollowFeed(c *fiber.Ctx) error {
	page, err := s.feedService.Following(c.UserContext(), middleware.UserID(c), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
