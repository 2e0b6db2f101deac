package server

import (
	"penfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia stores an image ahead of a JSON create or edit and returns the reference
// to put in the post's "image" field.
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	img, err := s.readUpload(c)
	if err != nil {
		return respondError(c, err)
	}
	if img == nil {
		return respondError(c, models.NewFieldError("image", "No file was submitted."))
	}
	ref, err := s.media.Save(c.UserContext(), img.filename, img.content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"image": ref})
}
