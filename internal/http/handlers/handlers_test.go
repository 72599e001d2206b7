package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-postboard/internal/auth"
	"github.com/tbourn/go-postboard/internal/http/middleware"
	"github.com/tbourn/go-postboard/internal/moderation"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/services"
)

type testAPI struct {
	r     *gin.Engine
	db    *gorm.DB
	users *services.UserService
}

// newTestAPI mounts the handlers on real services over an in-memory database.
// Authentication is replaced by an X-Test-User header.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tokens, err := auth.NewTokenAuthority("handler-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	gate := moderation.NewGate(moderation.WithLogger(zerolog.Nop()))
	users := services.NewUserService(db, tokens)
	users.BcryptCost = 4

	h := New(Deps{
		Users:    users,
		Posts:    services.NewPostService(db, gate, nil),
		Comments: services.NewCommentPipeline(db, gate, nil),
		Stats:    &services.StatsService{DB: db},
		DB:       db,
	})

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	api := r.Group("")
	api.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("userID", uid)
		}
		c.Next()
	})
	api.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, postID, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, userID, postID, key, now)
			return err == nil, err
		}))
	api.POST("/posts", h.CreatePost)
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:id", h.GetPost)
	api.DELETE("/posts/:id", h.DeletePost)
	api.POST("/posts/:id/comments", h.CreateComment)
	api.GET("/posts/:id/comments", h.ListComments)
	api.GET("/comments-daily-breakdown", h.DailyBreakdown)

	return &testAPI{r: r, db: db, users: users}
}

func (a *testAPI) do(method, path, user string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	if code != "" {
		if got := decode[ErrorResponse](t, w).Code; got != code {
			t.Fatalf("code = %q; want %q", got, code)
		}
	}
}

func (a *testAPI) createPost(t *testing.T, user string, body CreatePostRequest) map[string]any {
	t.Helper()
	w := a.do(http.MethodPost, "/posts", user, body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: %d %s", w.Code, w.Body.String())
	}
	return decode[map[string]any](t, w)
}
