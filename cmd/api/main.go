package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"dalildocs/internal/api"
	"dalildocs/internal/auth"
	"dalildocs/internal/config"
	"dalildocs/internal/database"
	"dalildocs/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.MustLoad()
	logger.Info("api bootstrapped",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("upload_backend", cfg.Uploads.Backend),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logger.Error("init database failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		logger.Error("auto migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	created, err := database.EnsureMainAdmin(db, cfg.Bootstrap)
	if err != nil {
		logger.Error("ensure main admin failed", slog.Any("error", err))
		os.Exit(1)
	}
	if created {
		logger.Info("created default main admin", slog.String("username", cfg.Bootstrap.AdminUsername))
	}

	var store storage.Store
	switch cfg.Uploads.Backend {
	case "minio":
		store, err = storage.NewMinIOStore(cfg.MinIO)
	default:
		store, err = storage.NewLocalStore(cfg.Uploads.Dir)
	}
	if err != nil {
		logger.Error("init storage failed", slog.Any("error", err))
		os.Exit(1)
	}

	sessions, err := auth.NewSessionService(cfg.Session.Secret, cfg.Session.TTL())
	if err != nil {
		logger.Error("init session service failed", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
	})

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, db, sessions, redisClient, logger, store, cfg)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		logger.Error("api server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
