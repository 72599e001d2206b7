package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/services"
)

// CreatePostRequest is the payload for POST /posts. AutoReplyDelay is in
// seconds; delay and text are ignored while auto-reply is disabled.
type CreatePostRequest struct {
	Title            string `json:"title" binding:"required" example:"Weekend plans"`
	Content          string `json:"content" binding:"required" example:"Anyone up for a hike?"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled" example:"true"`
	AutoReplyDelay   int    `json:"auto_reply_delay" binding:"gte=0" example:"60"`
	AutoReplyText    string `json:"auto_reply_text" example:"Thanks for your comment!"`
}

// ListPostsResponse is a page of posts.
type ListPostsResponse struct {
	Posts      []domain.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

// CreatePost godoc
// @ID          createPost
// @Summary     Create a post
// @Description Title and content are moderated; blocked posts are stored with is_blocked=true.
// @Tags        Posts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreatePostRequest  true  "Post"
// @Success     201   {object}  domain.Post
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     500   {object}  handlers.ErrorResponse
// @Router      /posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and content are required; auto_reply_delay must be >= 0")
		return
	}

	p, err := h.posts.Create(c.Request.Context(), userID(c), services.NewPost{
		Title:            req.Title,
		Content:          req.Content,
		AutoReplyEnabled: req.AutoReplyEnabled,
		AutoReplyDelay:   req.AutoReplyDelay,
		AutoReplyText:    req.AutoReplyText,
	})
	switch {
	case err == nil:
		ok(c, http.StatusCreated, p)
	case errors.Is(err, services.ErrInvalidAutoReply):
		fail(c, http.StatusBadRequest, ErrCodeInvalidReply, err.Error())
	case errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create post")
	}
}

// ListPosts godoc
// @ID          listPosts
// @Summary     List posts, newest first
// @Tags        Posts
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListPostsResponse
// @Header      200  {string}  ETag  "Weak ETag of the collection"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	ctx := c.Request.Context()
	if h.db != nil {
		if count, latest, err := repo.PostsStats(ctx, h.db); err == nil && notModified(c, "posts", count, latest) {
			return
		}
	}

	page, pageSize := pageParams(c)
	items, total, err := h.posts.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list posts")
		return
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: items, Pagination: newPagination(page, pageSize, total)})
}

// GetPost godoc
// @ID          getPost
// @Summary     Get a post
// @Tags        Posts
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Post ID"  format(uuid)
// @Success     200  {object}  domain.Post
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "post_not_found"
// @Router      /posts/{id} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	id, good := postID(c)
	if !good {
		return
	}
	p, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		postError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a post
// @Description Soft-deletes a post owned by the caller and cancels its pending auto-replies.
// @Tags        Posts
// @Security    BearerAuth
// @Param       id   path  string  true  "Post ID"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "post_not_found"
// @Router      /posts/{id} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	id, good := postID(c)
	if !good {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), userID(c), id); err != nil {
		postError(c, err)
		return
	}
	noContent(c)
}

// postID validates the :id path parameter, failing the request when it is
// not a UUID.
func postID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return "", false
	}
	return id, true
}

func postError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		fail(c, http.StatusNotFound, ErrCodePostNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
