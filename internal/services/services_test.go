package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-postboard/internal/auth"
	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/moderation"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/scheduler"
)

// newTestDB opens a migrated in-memory database private to the test. A single
// connection keeps scheduler workers and the test goroutine from tripping
// over shared-cache table locks.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestGate(t *testing.T) *moderation.Gate {
	t.Helper()
	g := moderation.NewGate(moderation.WithLogger(zerolog.Nop()))
	if err := g.Load(); err != nil {
		t.Fatalf("load wordlist: %v", err)
	}
	return g
}

func newTestTokens(t *testing.T) *auth.TokenAuthority {
	t.Helper()
	ta, err := auth.NewTokenAuthority("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token authority: %v", err)
	}
	return ta
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), db, name, name+"@example.com", "hash")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedPost(t *testing.T, svc *PostService, authorID string, in NewPost) *domain.Post {
	t.Helper()
	if in.Title == "" {
		in.Title = "Hello"
	}
	if in.Content == "" {
		in.Content = "First post"
	}
	p, err := svc.Create(context.Background(), authorID, in)
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}

// recordingScheduler captures submitted tasks without running them.
type recordingScheduler struct {
	tasks []scheduler.Task
	err   error
}

func (r *recordingScheduler) Schedule(t scheduler.Task) (*scheduler.Handle, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, t)
	return nil, nil
}

type cancelRecorder struct{ posts []string }

func (c *cancelRecorder) CancelPost(id string) { c.posts = append(c.posts, id) }
