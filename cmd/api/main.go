package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/participation-api/internal/config"
	"github.com/noah-isme/participation-api/internal/database"
	"github.com/noah-isme/participation-api/internal/handler"
	"github.com/noah-isme/participation-api/internal/middleware"
	"github.com/noah-isme/participation-api/internal/repository"
	"github.com/noah-isme/participation-api/internal/router"
	"github.com/noah-isme/participation-api/internal/service"
	cloud "github.com/noah-isme/participation-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, lookup cache and feed relay disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, participation events stay local")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	var archive service.DeckArchive
	if cfg.ArchiveEnabled() {
		deckArchive, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		archive = deckArchive
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	feed := service.NewParticipationFeed(natsConn, cfg.NATSSubject, redisClient, cfg.FeedChannel, logger)
	if err := feed.Start(rootCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start participation feed")
	}

	auditService := service.NewAuditService(auditRepo, logger)
	lookupService := service.NewLookupService(studentRepo, activityRepo, validate, redisClient, cfg.LookupCacheTTL, logger)
	participationService := service.NewParticipationService(activityRepo, participantRepo, auditService, feed, validate, logger)
	certificateService := service.NewCertificateService(
		service.NewRecipientSelector(activityRepo, participantRepo),
		service.NewTemplateIntake(cfg.TemplateMaxSizeMB),
		archive,
		auditService,
		validate,
		logger,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.TemplateMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:        &logger,
		CORSOrigins:   cfg.CORSOrigins,
		AccessLogging: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		LookupHandler:        handler.NewLookupHandler(lookupService, logger),
		ParticipationHandler: handler.NewParticipationHandler(participationService, logger),
		CertificateHandler:   handler.NewCertificateHandler(certificateService, logger),
		AuditHandler:         handler.NewAuditHandler(auditService, logger),
		FeedHandler:          handler.NewFeedHandler(feed, logger),
		HealthProbes:         healthProbes(db, redisClient, natsConn),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-rootCtx.Done()
	shutdown(app, logger)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func shutdown(app *fiber.App, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
