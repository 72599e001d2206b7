package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-postboard/internal/auth"
)

// Gin context keys set by Authenticate.
const (
	ctxKeyUserID   = "userID"
	ctxKeyIdentity = "identity"
)

// Authenticator validates an Authorization header value.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (auth.Identity, error)
}

// Authenticate rejects requests without a valid bearer token with 401 and a
// code naming the failure (token_missing, token_malformed, token_expired,
// unknown_subject). On success the caller's id is stored under "userID" and
// the identity is attached to the request context.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			code, msg := authFailure(err)
			if code == "internal_error" {
				LoggerFrom(c).Error().Err(err).Msg("authenticate")
				abortJSON(c, http.StatusInternalServerError, code, msg)
				return
			}
			c.Header("WWW-Authenticate", `Bearer realm="postboard"`)
			abortJSON(c, http.StatusUnauthorized, code, msg)
			return
		}

		c.Set(ctxKeyUserID, id.ID)
		c.Set(ctxKeyIdentity, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Authenticate.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func authFailure(err error) (code, msg string) {
	switch {
	case errors.Is(err, auth.ErrMissing):
		return "token_missing", "authorization token required"
	case errors.Is(err, auth.ErrExpired):
		return "token_expired", "token has expired"
	case errors.Is(err, auth.ErrUnknownSubject):
		return "unknown_subject", "token subject no longer exists"
	case errors.Is(err, auth.ErrMalformed):
		return "token_malformed", "token is malformed or has a bad signature"
	}
	return "internal_error", "internal server error"
}

// abortJSON writes the shared error envelope from middleware, which cannot
// import the handlers package.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
