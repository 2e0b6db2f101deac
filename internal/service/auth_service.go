package service

import (
	"context"
	"strings"

	"penfeed/internal/models"
	"penfeed/internal/repository"
	"penfeed/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// AuthService registers accounts and checks credentials. Tokens are issued by the caller.
type AuthService struct {
	users repository.UserRepository
	cost  int
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	// Identifier is a username or an email address.
	Identifier string
	Password   string
}

func NewAuthService(users repository.UserRepository) *AuthService {
	return &AuthService{users: users, cost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost (tests use bcrypt.MinCost).
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fields := map[string]string{}
	if err := validation.ValidateUsername(username); err != nil {
		fields["username"] = err.Error()
	}
	if err := validation.ValidateEmail(email); err != nil {
		fields["email"] = err.Error()
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, &models.AppError{Code: models.CodeValidation, Message: "Invalid signup data", Fields: fields}
	}

	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}
	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Username: username, Email: email, Password: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login returns the user whose credentials match. Unknown users and bad passwords
// fail the same way.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthenticatedError("Invalid credentials")
	}
	return user, nil
}

// CurrentUser loads the caller's account.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
