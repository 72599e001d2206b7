// Package handlers defines the stable error codes returned by the API.
//
// Every error response carries one of these codes in ErrorResponse.Code next
// to the HTTP status; clients branch on the code, not the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_username",
//	  "message": "username already registered"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Accounts
	ErrCodeDuplicateUsername  = "duplicate_username"
	ErrCodeDuplicateEmail     = "duplicate_email"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeUnknownUser        = "unknown_user"

	// Posts and comments
	ErrCodePostNotFound = "post_not_found"
	ErrCodeInvalidReply = "invalid_auto_reply"
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeInvalidRange = "invalid_range"

	ErrCodeIdempotencyInProgress = "idempotency_in_progress"
)
