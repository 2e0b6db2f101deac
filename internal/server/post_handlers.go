package server

import (
	"strconv"
	"strings"

	"penfeed/internal/featureflags"
	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the body of create and edit. Image is nil when the request does not
// mention an image, and points at "" when the image should be removed. upload holds a
// file sent with a multipart form; it is stored only once the post is accepted.
type postRequest struct {
	Text  string  `json:"text"`
	Group *uint   `json:"group"`
	Image *string `json:"image"`

	upload *pendingImage
}

type commentRequest struct {
	Text string `json:"text" form:"text"`
}

// bindPost reads a post from a JSON body or from a form. An uploaded image is read
// into memory but not stored.
func (s *Server) bindPost(c *fiber.Ctx) (*postRequest, error) {
	req := &postRequest{}
	if !isFormRequest(c) {
		if err := bind(c, req); err != nil {
			return nil, err
		}
		if req.Image != nil {
			ref := strings.TrimSpace(*req.Image)
			req.Image = &ref
		}
		return req, nil
	}

	req.Text = c.FormValue("text")
	if raw := strings.TrimSpace(c.FormValue("group")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return nil, models.NewFieldError("group", "Select a valid group.")
		}
		groupID := uint(id)
		req.Group = &groupID
	}
	if c.FormValue("image-clear") != "" {
		cleared := ""
		req.Image = &cleared
	}

	upload, err := s.readUpload(c)
	if err != nil {
		return nil, err
	}
	req.upload = upload
	return req, nil
}

// formContext is what a client needs to render the create and edit forms.
func (s *Server) formContext(c *fiber.Ctx, post *models.Post) (fiber.Map, error) {
	groups, err := s.groupService.ListGroups(c.UserContext())
	if err != nil {
		return nil, err
	}
	ctx := fiber.Map{
		"is_edit":       post != nil,
		"groups":        groups,
		"image_uploads": s.featureFlags.Enabled(featureflags.ImageUploads, middleware.UserID(c)),
	}
	if post != nil {
		ctx["post"] = post
	}
	return ctx, nil
}

// PostForm returns the context of an empty post form.
func (s *Server) PostForm(c *fiber.Ctx) error {
	ctx, err := s.formContext(c, nil)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ctx)
}

// CreatePost publishes a post as the caller and sends them to their profile.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	req, err := s.bindPost(c)
	if err != nil {
		return respondError(c, err)
	}

	upload, discard := s.deferUpload(req.upload)
	in := service.CreatePostInput{
		AuthorID: middleware.UserID(c),
		Text:     req.Text,
		GroupID:  req.Group,
		Upload:   upload,
	}
	if req.Image != nil {
		in.Image = *req.Image
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		discard(c.UserContext())
		return respondError(c, err)
	}
	s.publishPostCreated(c.UserContext(), post)

	return respondMutation(c, fiber.StatusCreated, profilePath(post.Author.Username), post)
}

// EditPostForm returns the edit form filled with the post. Only the author gets it.
func (s *Server) EditPostForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post")
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.GetPostForEdit(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondPostError(c, err, id)
	}
	ctx, err := s.formContext(c, post)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ctx)
}

// EditPost rewrites the caller's post. Other users are sent back to the post.
func (s *Server) EditPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post")
	if err != nil {
		return respondError(c, err)
	}
	req, err := s.bindPost(c)
	if err != nil {
		return respondError(c, err)
	}

	upload, discard := s.deferUpload(req.upload)
	post, err := s.postService.EditPost(c.UserContext(), service.EditPostInput{
		PostID:   id,
		EditorID: middleware.UserID(c),
		Text:     req.Text,
		GroupID:  req.Group,
		Image:    req.Image,
		Upload:   upload,
	})
	if err != nil {
		discard(c.UserContext())
		return respondPostError(c, err, id)
	}
	return respondMutation(c, fiber.StatusOK, postPath(post.ID), post)
}

// DeletePost removes the caller's post with its comments.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		PostID:  id,
		ActorID: middleware.UserID(c),
	}); err != nil {
		return respondPostError(c, err, id)
	}

	target := "/"
	if claims := middleware.Claims(c); claims != nil && claims.Username != "" {
		target = profilePath(claims.Username)
	}
	return respondMutation(c, fiber.StatusOK, target, fiber.Map{"id": id, "deleted": true})
}

// AddComment attaches the caller's comment and returns to the post.
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post")
	if err != nil {
		return respondError(c, err)
	}
	var req commentRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.AddComment(c.UserContext(), service.AddCommentInput{
		PostID:   id,
		AuthorID: middleware.UserID(c),
		Text:     req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	s.publishCommentCreated(c.UserContext(), comment)

	return respondMutation(c, fiber.StatusCreated, postPath(id), comment)
}
