package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"penfeed/internal/featureflags"
	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

func postPath(id uint) string { return fmt.Sprintf("/posts/%d/", id) }

func profilePath(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}

const followPath = "/follow/"

// statusForError maps an application error code to its HTTP status.
func statusForError(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err for the caller. Anonymous callers are sent to the login page;
// everything else is rendered as JSON.
func respondError(c *fiber.Ctx, err error) error {
	switch models.ErrorCode(err) {
	case models.CodeUnauthenticated:
		return middleware.RedirectToLogin(c)
	case models.CodeInternal:
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	case "":
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, statusForError(err), err)
}

// respondPostError is respondError for routes under a post: a caller who may not
// change the post is sent to its read-only view instead.
func respondPostError(c *fiber.Ctx, err error, postID uint) error {
	if models.IsCode(err, models.CodeForbidden) {
		return c.Redirect(postPath(postID), fiber.StatusFound)
	}
	return respondError(c, err)
}

func isFormRequest(c *fiber.Ctx) bool {
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))
	return strings.HasPrefix(ct, fiber.MIMEApplicationForm) || strings.HasPrefix(ct, fiber.MIMEMultipartForm)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// wantsRedirect reports whether a mutation should answer with a 302 like a browser form
// flow instead of returning the entity.
func wantsRedirect(c *fiber.Ctx) bool {
	return c.Query("redirect") == "1" || isFormRequest(c)
}

// respondMutation answers a successful write with either a redirect to target or body.
func respondMutation(c *fiber.Ctx, status int, target string, body any) error {
	if wantsRedirect(c) {
		return c.Redirect(target, fiber.StatusFound)
	}
	return c.Status(status).JSON(body)
}

// parseID extracts a route parameter as a positive id. Anything else names no resource.
func parseID(c *fiber.Ctx, param, resource string) (uint, error) {
	raw := c.Params(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewNotFoundError(resource, raw)
	}
	return uint(id), nil
}

// bind decodes a JSON or form body into v. An empty body leaves v untouched.
func bind(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}

// pendingImage is an uploaded file that has been read but not stored yet.
type pendingImage struct {
	filename string
	content  []byte
}

// readUpload reads the "image" file of a multipart request. It returns nil when no file
// was sent.
func (s *Server) readUpload(c *fiber.Ctx) (*pendingImage, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart body")
	}
	files := form.File["image"]
	if len(files) == 0 {
		return nil, nil
	}
	if !s.featureFlags.Enabled(featureflags.ImageUploads, middleware.UserID(c)) {
		return nil, models.NewFieldError("image", "Image uploads are disabled.")
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &pendingImage{filename: fh.Filename, content: content}, nil
}

// deferUpload hands img to a service as an ImageUpload. discard removes the stored file
// and must be called when the operation fails after the upload ran.
func (s *Server) deferUpload(img *pendingImage) (upload service.ImageUpload, discard func(context.Context)) {
	if img == nil {
		return nil, func(context.Context) {}
	}
	var stored string
	upload = func(ctx context.Context) (string, error) {
		ref, err := s.media.Save(ctx, img.filename, img.content)
		if err != nil {
			return "", err
		}
		stored = ref
		return ref, nil
	}
	discard = func(ctx context.Context) {
		if stored == "" {
			return
		}
		if err := s.media.Remove(ctx, stored); err != nil {
			middleware.Logger.WarnContext(ctx, "orphaned upload", slog.String("image", stored), slog.String("error", err.Error()))
		}
	}
	return upload, discard
}
