package server

import (
	"penfeed/internal/middleware"
	"penfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type groupRequest struct {
	Title       string `json:"title" form:"title"`
	Slug        string `json:"slug" form:"slug"`
	Description string `json:"description" form:"description"`
}

func (s *Server) ListGroups(c *fiber.Ctx) error {
	groups, err := s.groupService.ListGroups(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(groups)
}

// GroupDetail returns one group; admin clients use it to fill the edit form.
func (s *Server) GroupDetail(c *fiber.Ctx) error {
	group, err := s.groupService.GetGroup(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(group)
}

// CreateGroup adds a group. Staff only.
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	var req groupRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	group, err := s.groupService.CreateGroup(c.UserContext(), service.CreateGroupInput{
		ActorID:     middleware.UserID(c),
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondMutation(c, fiber.StatusCreated, "/group/"+group.Slug+"/", group)
}

// UpdateGroup changes a group's title and description. The slug stays.
func (s *Server) UpdateGroup(c *fiber.Ctx) error {
	var req groupRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	group, err := s.groupService.UpdateGroup(c.UserContext(), service.UpdateGroupInput{
		ActorID:     middleware.UserID(c),
		Slug:        c.Params("slug"),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondMutation(c, fiber.StatusOK, "/group/"+group.Slug+"/", group)
}

// FlushCache empties the response cache so the index reflects recent writes. Staff only.
func (s *Server) FlushCache(c *fiber.Ctx) error {
	if err := s.feedService.FlushCache(c.UserContext(), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return respondMutation(c, fiber.StatusOK, "/", fiber.Map{"flushed": true})
}
