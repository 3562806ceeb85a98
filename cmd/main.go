package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-engine/config"
	"github.com/Dosada05/tournament-engine/db"
	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/repositories/memory"
	api "github.com/Dosada05/tournament-engine/routes"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/go-chi/chi/v5"
)

// @title Tournament Engine API
// @version 1.0
// @description Групповой этап и плей-офф: регистрация, сеты, сетка, топ-4.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.Store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rec := metrics.New()

	store, closeStore, err := openStore(ctx, cfg, rec, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Инициализация WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := realtime.NewHub(logger)
	go wsHub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	publisher := realtime.Multi{wsHub}
	relayDone := make(chan struct{})
	if cfg.NotifyRedisURL == "" {
		close(relayDone)
	} else {
		redisPub, err := realtime.NewRedisPublisher(cfg.NotifyRedisURL, cfg.NotifyRedisChannel)
		if err != nil {
			return fmt.Errorf("redis publisher: %w", err)
		}
		defer redisPub.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisPub.Ping(pingCtx); err != nil {
			// События по-прежнему уходят в WebSocket, Redis догонит после восстановления.
			logger.Warn("redis is not reachable yet", slog.Any("error", err))
		}
		cancel()
		publisher = append(publisher, redisPub)
		// События других инстансов попадают в локальный Hub.
		relay := redisPub.Relay(wsHub, logger)
		go func() {
			defer close(relayDone)
			relay.Run(hubCtx)
		}()
		logger.Info("redis publisher enabled", slog.String("channel", cfg.NotifyRedisChannel))
	}
	notifier := services.NewNotifier(publisher, rec, logger)
	notifyCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	go notifier.Run(notifyCtx)

	// Инициализация сервисов
	tournamentService := services.NewTournamentService(store, logger)
	bracketService := services.NewBracketService(store, notifier, logger)
	balancer := groups.NewBalancer(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())))
	participantService := services.NewParticipantService(store, balancer, notifier, rec, logger)

	var archiver services.ResultsArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3UploaderConfig{
			AccountID:       cfg.R2AccountID,
			Endpoint:        cfg.R2Endpoint,
			Region:          cfg.R2Region,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("results uploader: %w", err)
		}
		archiver = services.NewResultsArchiver(store, bracketService, uploader, cfg.ArchivePrefix)
		logger.Info("results archive enabled", slog.String("bucket", cfg.R2BucketName))
	}
	matchService := services.NewMatchService(store, notifier, archiver, rec, logger)
	logger.Info("Services initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Tournaments:  handlers.NewTournamentHandler(tournamentService),
		Participants: handlers.NewParticipantHandler(participantService),
		Matches:      handlers.NewMatchHandler(matchService),
		Brackets:     handlers.NewBracketHandler(bracketService),
		WebSocket:    handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.Origins(), logger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.Origins(),
		Metrics:        rec,
		Logger:         logger,
	})

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received", slog.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}

	// Доставляем накопившиеся события, пока Hub ещё жив.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := notifier.Flush(flushCtx); err != nil {
		logger.Warn("pending notifications were not delivered", slog.Any("error", err))
	}
	cancelFlush()
	stopNotifier()
	<-notifier.Done()

	stopHub()
	<-relayDone
	<-wsHub.Done()
	logger.Info("WebSocket Hub stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger *slog.Logger) (repositories.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New().Repositories(), func() {}, nil
	}

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, db.DefaultPool, logger)
	if err != nil {
		return repositories.Store{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func(conn *sql.DB) {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}
	logger.Info("database connection established")

	if err := db.Migrate(ctx, dbConn); err != nil {
		closeDB(dbConn)
		return repositories.Store{}, nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	tx := repositories.NewPostgresTransactor(dbConn, repositories.TxOptions{
		Timeout:    cfg.TxTimeout,
		MaxRetries: cfg.TxMaxRetries,
		OnRetry:    func(int, error) { rec.TxRetried() },
	}, logger)
	return repositories.NewPostgresStore(dbConn, tx), func() { closeDB(dbConn) }, nil
}

// issueToken prints an admin bearer token signed with JWT_SECRET_KEY.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	token, err := middleware.SignToken([]byte(cfg.JWTSecretKey), *subject, middleware.RoleAdmin, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
