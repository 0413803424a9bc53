package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"match_chat/internal/api"
	"match_chat/internal/middleware"
	"match_chat/internal/models"
	"match_chat/internal/repository"
	"match_chat/internal/service"
	"match_chat/internal/storage"
	"match_chat/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)

	// 初始化訊息儲存
	repos, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("failed to initialize message store")
	}
	defer closeStore()

	// 初始化 services
	services := service.NewServices(repos, cfg, log)

	// 設置 Gin 路由
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log.With().Str("component", "http").Logger()), middleware.Metrics())
	api.SetupRoutes(r, services, cfg, log)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Str("driver", cfg.DB.Driver).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// WebSocket 連線已被接管，不在 http.Server 的追蹤內，需由 services 主動關閉
	services.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", "match_chat").Logger()
}

// openStore 依 db.driver 建立訊息儲存，回傳的 close 會依序釋放 repositories 與底層資料庫
func openStore(cfg *config.Config, log zerolog.Logger) (*repository.Repositories, func(), error) {
	switch cfg.DB.Driver {
	case "badger":
		db, err := storage.OpenBadger(cfg.DB.Path, log)
		if err != nil {
			return nil, nil, err
		}
		repos, err := repository.NewBadgerRepositories(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repos, func() {
			if err := repos.Close(); err != nil {
				log.Error().Err(err).Msg("close repositories")
			}
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("close badger")
			}
		}, nil

	case "postgres", "sqlite":
		var (
			db  *storage.DB
			err error
		)
		if cfg.DB.Driver == "postgres" {
			db, err = storage.NewPostgresDB(storage.PostgresOptions{
				Host:     cfg.DB.Host,
				User:     cfg.DB.User,
				Password: cfg.DB.Password,
				Name:     cfg.DB.Name,
				Port:     cfg.DB.Port,
				SSLMode:  cfg.DB.SSLMode,
			})
		} else {
			db, err = storage.NewSQLiteDB(cfg.DB.Path)
		}
		if err != nil {
			return nil, nil, err
		}

		// 自動遷移資料庫結構
		if err := db.AutoMigrate(&models.Message{}); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to auto migrate database: %w", err)
		}

		repos := repository.NewRepositories(db)
		return repos, func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("close database")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
}
