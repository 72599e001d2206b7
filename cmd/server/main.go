// Command server runs the postboard HTTP API.
//
//	@title						Postboard API
//	@version					1.0
//	@description				Posts and comments with censor-word moderation, delayed auto-replies and daily comment statistics.
//	@BasePath					/api/v1
//	@schemes					http https
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT returned by /login.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/docs"
	"github.com/tbourn/go-postboard/internal/auth"
	"github.com/tbourn/go-postboard/internal/config"
	httpapi "github.com/tbourn/go-postboard/internal/http"
	"github.com/tbourn/go-postboard/internal/moderation"
	"github.com/tbourn/go-postboard/internal/observability"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/scheduler"
	"github.com/tbourn/go-postboard/internal/services"
	"github.com/tbourn/go-postboard/internal/sysutil"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()
	if *showVersion {
		fmt.Printf("Postboard Server\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n", Version, BuildDate, GitCommit)
		return
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if cfg.DBTracing {
		if err := repo.EnableTracing(db); err != nil {
			return fmt.Errorf("db tracing: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	gate := moderation.NewGate(moderation.WithWordlistFile(cfg.Moderation.WordlistPath))
	if err := gate.Load(); err != nil {
		logger.Warn().Err(err).Msg("custom wordlist unavailable, using embedded list")
	}
	logger.Info().Int("entries", gate.Size()).Msg("moderation wordlist loaded")

	if cfg.UsesDefaultSecret() {
		lvl := zerolog.WarnLevel
		if cfg.GinMode == gin.ReleaseMode {
			lvl = zerolog.ErrorLevel
		}
		logger.WithLevel(lvl).Msg("JWT_SECRET is the built-in default; set it before exposing the server")
	}
	tokens, err := auth.NewTokenAuthority(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token authority: %w", err)
	}
	users := services.NewUserService(db, tokens)
	users.BcryptCost = cfg.Auth.BcryptCost

	pipeline := services.NewCommentPipeline(db, gate, nil)
	sched := scheduler.New(observability.TraceExecutor(pipeline.DeliverReply), scheduler.Options{
		Name:        "replies",
		Workers:     cfg.Reply.Workers,
		MaxInFlight: cfg.Reply.MaxInFlight,
	})
	pipeline.Scheduler = sched

	posts := services.NewPostService(db, gate, sched)
	posts.MaxReplyDelay = cfg.Reply.MaxDelay

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = Version
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Services{
		Users:    users,
		Posts:    posts,
		Comments: pipeline,
		Stats:    &services.StatsService{DB: db},
		Auth:     auth.NewGate(tokens, auth.ResolverFunc(users.ResolveSubject)),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("version", Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeIdempotency(gctx, db, time.Hour)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		// pending replies are dropped; the scheduler logs how many
		if serr := sched.Shutdown(sctx); serr != nil {
			logger.Warn().Err(serr).Msg("reply scheduler shutdown")
		}
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return err
	})
	return g.Wait()
}

// purgeIdempotency removes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
