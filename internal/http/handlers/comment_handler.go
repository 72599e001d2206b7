package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/http/middleware"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/services"
)

// CreateCommentRequest is the payload for POST /posts/{id}/comments.
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required" example:"Great post!"`
}

// ListCommentsResponse is a page of comments in insertion order.
type ListCommentsResponse struct {
	Comments   []domain.Comment `json:"comments"`
	Pagination Pagination       `json:"pagination"`
}

// CreateComment godoc
// @ID          createComment
// @Summary     Comment on a post
// @Description The comment is moderated and stored (blocked comments carry is_blocked=true).
// @Description If the post has auto-reply enabled, one reply by the post author is scheduled.
// @Description Retries with the same Idempotency-Key return the original comment.
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"
// @Param       id               path    string  true   "Post ID"  format(uuid)
// @Param       body             body    handlers.CreateCommentRequest  true  "Comment"
// @Success     201  {object}  domain.Comment
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "post_not_found"
// @Failure     409  {object}  handlers.ErrorResponse  "idempotency_in_progress"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /posts/{id}/comments [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	ctx := c.Request.Context()
	pid, good := postID(c)
	if !good {
		return
	}
	uid := userID(c)
	key, hasKey := middleware.GetIdempotencyKey(c)
	hasKey = hasKey && h.db != nil

	if hasKey && middleware.IsReplay(c) {
		h.replayComment(c, uid, pid, key)
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	var reservation *domain.Idempotency
	if hasKey {
		rec, err := repo.ReserveIdempotency(ctx, h.db, uid, pid, key, h.idemTTL)
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			// a request with this key committed or is in progress
			h.replayComment(c, uid, pid, key)
			return
		case err != nil:
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency key not reserved")
		default:
			reservation = rec
		}
	}

	cm, err := h.comments.Submit(ctx, uid, pid, req.Content)
	if err != nil {
		if reservation != nil {
			if rerr := repo.ReleaseIdempotency(ctx, h.db, reservation.ID); rerr != nil {
				middleware.LoggerFrom(c).Warn().Err(rerr).Msg("idempotency reservation not released")
			}
		}
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			fail(c, http.StatusNotFound, ErrCodePostNotFound, err.Error())
		case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not store comment")
		}
		return
	}

	if reservation != nil {
		if err := repo.CompleteIdempotency(ctx, h.db, reservation.ID, cm.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not completed")
		}
	}
	ok(c, http.StatusCreated, cm)
}

// replayComment answers a retried request from its idempotency record. A
// reservation that has no comment yet belongs to a request still running.
func (h *Handlers) replayComment(c *gin.Context, uid, pid, key string) {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, uid, pid, key, time.Now().UTC())
	if err != nil || rec.CommentID == "" {
		fail(c, http.StatusConflict, ErrCodeIdempotencyInProgress, "a request with this Idempotency-Key is still in progress")
		return
	}
	prev, err := h.comments.Get(ctx, rec.CommentID)
	if err != nil {
		fail(c, http.StatusConflict, ErrCodeIdempotencyInProgress, "a request with this Idempotency-Key is still in progress")
		return
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, prev)
}

// ListComments godoc
// @ID          listComments
// @Summary     List comments of a post
// @Tags        Comments
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Param       id             path    string  true   "Post ID"  format(uuid)
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListCommentsResponse
// @Header      200  {string}  ETag  "Weak ETag of the collection"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "post_not_found"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /posts/{id}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	ctx := c.Request.Context()
	pid, good := postID(c)
	if !good {
		return
	}

	page, pageSize := pageParams(c)
	items, total, err := h.comments.ListPage(ctx, pid, page, pageSize)
	if err != nil {
		postError(c, err)
		return
	}
	if h.db != nil {
		if count, latest, err := repo.CommentsStats(ctx, h.db, pid); err == nil && notModified(c, "comments:"+pid, count, latest) {
			return
		}
	}
	ok(c, http.StatusOK, ListCommentsResponse{Comments: items, Pagination: newPagination(page, pageSize, total)})
}
