package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/config"
	"github.com/noah-isme/echo-go-api/internal/database"
	"github.com/noah-isme/echo-go-api/internal/fanout"
	"github.com/noah-isme/echo-go-api/internal/handler"
	"github.com/noah-isme/echo-go-api/internal/middleware"
	"github.com/noah-isme/echo-go-api/internal/repository"
	"github.com/noah-isme/echo-go-api/internal/router"
	"github.com/noah-isme/echo-go-api/internal/service"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	mongoClient, err := database.ConnectMongo(rootCtx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()
	mongoDB := mongoClient.Database(cfg.MongoDatabase)
	if err := repository.EnsureMessageIndexes(rootCtx, mongoDB); err != nil {
		log.Fatalf("failed to create message indexes: %v", err)
	}

	hub := fanout.NewHub(logger)
	relay := fanout.NewRelay(hub, redisClient, natsConn, cfg.RealtimeChannel, logger)
	if err := relay.Start(rootCtx); err != nil {
		log.Fatalf("failed to start fanout relay: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	parser := auth.NewParser(cfg.JWTSecret)

	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	chatRepo := repository.NewChatRepository(db)
	userRepo := repository.NewUserRepository(db)
	sweepRunRepo := repository.NewSweepRunRepository(db)
	messageStore := repository.NewMongoMessageStore(mongoDB)

	feedService := service.NewFeedService(postRepo, commentRepo, cfg.Lifetime, validate, logger)
	voteService := service.NewVoteService(voteRepo, service.LifetimePolicies(cfg.Lifetime), cfg.StoreTimeout, logger)
	sweeper := service.NewExpirySweeper(postRepo, sweepRunRepo, redisClient, service.SweeperConfig{
		Interval:    cfg.SweeperInterval,
		Concurrency: cfg.SweeperConcurrency,
		Timeout:     cfg.StoreTimeout,
		LockKey:     cfg.RealtimeChannel + ":sweeper:lock",
	}, logger)
	profiles := service.NewSenderProfiles(userRepo, cfg.ProfileCacheSize, cfg.ProfileCacheTTL, logger)
	pipeline := service.NewMessagePipeline(chatRepo, messageStore, relay, profiles, service.PipelineConfig{
		SummaryLength: cfg.ChatSummaryLength,
		HistoryLimit:  cfg.ChatHistoryLimit,
		StoreTimeout:  cfg.StoreTimeout,
	}, validate, logger)
	chatService := service.NewChatService(chatRepo, userRepo, relay, validate, logger)
	sessions := service.NewSessionManager(chatRepo, pipeline, relay, parser, service.SessionConfig{
		StoreTimeout: cfg.StoreTimeout,
	}, logger)

	readiness := []handler.DependencyCheck{
		{Name: "postgres", Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{Name: "mongo", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }},
	}
	if redisClient != nil {
		readiness = append(readiness, handler.DependencyCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AppEnv != "production",
	})
	router.Register(app, cfg, router.Dependencies{
		FeedHandler:     handler.NewFeedHandler(feedService, logger),
		VoteHandler:     handler.NewVoteHandler(voteService, validate, logger),
		ChatHandler:     handler.NewChatHandler(chatService, pipeline, sessions, validate, logger),
		SweepHandler:    handler.NewSweepHandler(sweeper, logger),
		Parser:          parser,
		ReadinessChecks: readiness,
	})

	go sweeper.Run(rootCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(rootCtx, app)
}

func waitForShutdown(shutdownCtx context.Context, app *fiber.App) {
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
