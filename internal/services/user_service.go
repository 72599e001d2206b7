package services

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/auth"
	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/repo"
)

var usernameRE = regexp.MustCompile(`^[\pL\pN.@+_-]{1,150}$`)

// UserService registers accounts and exchanges credentials for tokens.
// It also resolves token subjects for the authentication gate.
type UserService struct {
	DB     *gorm.DB
	Tokens *auth.TokenAuthority

	// BcryptCost is passed to auth.HashPassword.
	BcryptCost int
}

// NewUserService returns a UserService with bcrypt's default cost.
func NewUserService(db *gorm.DB, tokens *auth.TokenAuthority) *UserService {
	return &UserService{DB: db, Tokens: tokens, BcryptCost: 10}
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Register creates an account. The username is checked before the email, so
// a request clashing on both reports ErrDuplicateUsername.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Register",
		trace.WithAttributes(attribute.String("user.name", username)))
	defer span.End()

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if !usernameRE.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 || len(password) > 72 {
		return nil, ErrWeakPassword
	}

	if taken, err := repo.UsernameTaken(ctx, s.DB, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrDuplicateUsername
	}
	if taken, err := repo.EmailTaken(ctx, s.DB, email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrDuplicateEmail
	}

	hash, err := auth.HashPassword(password, s.BcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := repo.CreateUser(ctx, s.DB, username, email, hash)
	if errors.Is(err, repo.ErrDuplicate) {
		// lost a race with a concurrent registration
		if taken, _ := repo.UsernameTaken(ctx, s.DB, username); taken {
			return nil, ErrDuplicateUsername
		}
		return nil, ErrDuplicateEmail
	}
	return u, err
}

// Login verifies credentials and issues a bearer token.
func (s *UserService) Login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Login",
		trace.WithAttributes(attribute.String("user.name", username)))
	defer span.End()

	u, err := repo.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	tok, exp, err := s.Tokens.Issue(auth.Identity{ID: u.ID, Username: u.Username})
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

// ResolveSubject implements auth.Resolver.
func (s *UserService) ResolveSubject(ctx context.Context, id string) (auth.Identity, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return auth.Identity{}, auth.ErrUnknownSubject
		}
		return auth.Identity{}, err
	}
	return auth.Identity{ID: u.ID, Username: u.Username}, nil
}
