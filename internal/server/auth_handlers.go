package server

import (
	"time"

	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signupRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	// Username also accepts an email address.
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) setTokenCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// signIn issues a token for user and stores it in the session cookie.
func (s *Server) signIn(c *fiber.Ctx, user *models.User) (*authResponse, error) {
	token, err := middleware.IssueToken(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	s.setTokenCookie(c, token, time.Now().Add(middleware.TokenTTL))
	return &authResponse{Token: token, User: user}, nil
}

// LoginForm echoes where the caller will be sent after signing in.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"next": safeNext(c.Query("next"))})
}

// Login signs in by username or email.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
	})
	if err != nil {
		// a failed login is an answer, not a reason to go back to the login page
		if models.IsCode(err, models.CodeUnauthenticated) {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		return respondError(c, err)
	}

	resp, err := s.signIn(c, user)
	if err != nil {
		return respondError(c, err)
	}

	next := req.Next
	if next == "" {
		next = c.Query("next")
	}
	return respondMutation(c, fiber.StatusOK, safeNext(next), resp)
}

func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	resp, err := s.signIn(c, user)
	if err != nil {
		return respondError(c, err)
	}
	return respondMutation(c, fiber.StatusCreated, "/", resp)
}

// Logout revokes the caller's token and clears the session cookie.
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims := middleware.Claims(c); claims != nil {
		if err := middleware.RevokeToken(c.UserContext(), s.redis, claims); err != nil {
			return respondError(c, models.NewInternalError(err))
		}
	}
	s.setTokenCookie(c, "", time.Now().Add(-time.Hour))
	return respondMutation(c, fiber.StatusOK, "/", fiber.Map{"message": "Logged out"})
}
