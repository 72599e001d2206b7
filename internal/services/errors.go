// Package services holds the business logic for accounts, posts, the
// moderated comment pipeline and reporting. This file centralizes the
// service-level error values returned to handlers, which translate them into
// HTTP statuses and stable error codes.
package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/repo"
)

// Account errors.
var (
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrDuplicateEmail is returned by Register when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is returned by Login for a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnknownUser is returned by Login when no such username exists.
	ErrUnknownUser = errors.New("unknown user")

	ErrInvalidUsername = errors.New("username must be 1-150 letters, digits or @.+-_")
	ErrInvalidEmail    = errors.New("email address is invalid")
	ErrWeakPassword    = errors.New("password must be 8-72 bytes")
)

// Content errors.
var (
	ErrEmptyTitle   = errors.New("title is empty")
	ErrEmptyContent = errors.New("content is empty")
	ErrTooLong      = errors.New("text too long")

	// ErrInvalidAutoReply covers a negative or oversized delay and an enabled
	// auto-reply without text.
	ErrInvalidAutoReply = errors.New("invalid auto-reply configuration")

	// ErrPostNotFound indicates the post does not exist or was deleted.
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound indicates the comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrForbidden is returned when a user acts on a post they do not own.
	ErrForbidden = errors.New("not the owner of this post")

	// ErrInvalidRange is returned when a reporting window ends before it starts.
	ErrInvalidRange = errors.New("date_to must not be before date_from")
)

// isNotFound treats the repo sentinel and GORM's as the same condition.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
