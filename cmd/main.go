package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"yolda/config"
	"yolda/internal/dispatch"
	"yolda/internal/handler"
	"yolda/internal/repository"
	"yolda/internal/state"
	"yolda/traits/database"
	"yolda/traits/logger"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Error("error init config", zap.Error(err))
		return
	}

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		zapLogger.Error("invalid configuration", zap.Error(err))
		return
	}

	zapLogger.Info("Starting Yolda application",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("db_name", cfg.DBName),
	)

	// Initialize database
	db, err := database.InitDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to initialize database", zap.Error(err))
		return
	}
	defer db.Close()

	// Create database tables
	if err := database.CreateTables(db, zapLogger); err != nil {
		zapLogger.Error("failed to create tables", zap.Error(err))
		return
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation state store
	stateStore, err := state.NewStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to connect to redis", zap.Error(err))
		return
	}
	defer stateStore.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, zapLogger)
	orderRepo := repository.NewOrderRepository(db, zapLogger)
	queueRepo := repository.NewQueueRepository(db, zapLogger)
	contentRepo := repository.NewContentRepository(db, zapLogger)

	feed := handler.NewLiveFeed(zapLogger)

	// Create bot instance
	var handl *handler.Handler
	opts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			handl.HandleUpdate(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Error("error creating bot", zap.Error(err))
		return
	}

	// Dispatch core wired to the live bot
	dispatchService := dispatch.NewService(
		cfg, zapLogger,
		orderRepo, queueRepo, userRepo,
		dispatch.NewBotMessenger(b),
		feed,
	)

	handl = handler.NewHandler(cfg, zapLogger, db,
		userRepo, orderRepo, contentRepo,
		dispatchService, stateStore, feed)

	// Set up graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-stop
		zapLogger.Info("Shutdown signal received")
		cancel()
	}()

	// Start background services
	go dispatchService.RunSweeper(ctx)
	go handl.StartWebServer(ctx)
	zapLogger.Info("Web server started", zap.String("address", cfg.GetServerAddress()))

	// Start bot
	zapLogger.Info("Bot started successfully")
	b.Start(ctx)

	zapLogger.Info("Application stopped successfully")
}
