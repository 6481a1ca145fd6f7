package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/content-platform/internal/cache"
	"github.com/iliyamo/content-platform/internal/config"
	"github.com/iliyamo/content-platform/internal/database"
	"github.com/iliyamo/content-platform/internal/handler"
	"github.com/iliyamo/content-platform/internal/permission"
	"github.com/iliyamo/content-platform/internal/queue"
	"github.com/iliyamo/content-platform/internal/repository"
	"github.com/iliyamo/content-platform/internal/router"
	"github.com/iliyamo/content-platform/internal/service"
	"github.com/iliyamo/content-platform/internal/storage"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	level := logLevel(cfg.LogLevel)
	e.Logger.SetLevel(level)
	glog.SetLevel(level)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		e.Logger.Warn("redis unavailable, using in-process rate limits and caches")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tweets := repository.NewTweetRepo(db)
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, users)
	admins := cache.NewAdminIDs(users.ListAdminIDs, rdb, cfg.AdminCacheTTL)
	uploads := storage.New(cfg.S3)

	if cfg.RabbitMQURL != "" {
		consumer := queue.AuditConsumer{URL: cfg.RabbitMQURL, Dir: cfg.LogDir}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.Logger.Errorf("moderation consumer stopped: %v", err)
			}
		}()
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				c.Logger().Infof("%s %s %d %s ip=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RemoteIP, v.Error)
				return nil
			}
			c.Logger().Infof("%s %s %d %s ip=%s", v.Method, v.URI, v.Status, v.Latency, v.RemoteIP)
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Prefix: cfg.APIPrefix,
		Users: &handler.UserHandler{
			Users:        users,
			Tokens:       tokens,
			Admins:       admins,
			Uploads:      uploads,
			BcryptCost:   cfg.BcryptCost,
			CookieSecure: cfg.CookieSecure,
		},
		Tweets: &handler.TweetHandler{
			Tweets:  tweets,
			Users:   users,
			Admins:  admins,
			Events:  service.ModerationPublisher{URL: cfg.RabbitMQURL},
			Uploads: uploads,
		},
		Tokens:           tokens,
		Identity:         users,
		Resolver:         permission.NewResolver(permission.DefaultMatrix()),
		Redis:            rdb,
		RateLimit:        config.LoadRateLimitConfig(),
		RefreshRateLimit: config.LoadRefreshRateLimitConfig(),
		Cache:            config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error(err)
	}
}

func logLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	}
	return glog.INFO
}
