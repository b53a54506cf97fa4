package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"social-service/internal/config"
	"social-service/internal/db"
	grpcsvc "social-service/internal/grpc"
	"social-service/internal/handlers"
	"social-service/internal/metrics"
	"social-service/internal/middleware"
	"social-service/internal/observability"
	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
	"social-service/internal/services"
	"social-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// zap is not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	publisher := newPublisher(ctx, cfg, cfg.EventsExchange, logger)
	defer publisher.Close()
	auditPublisher := newPublisher(ctx, cfg, cfg.LogsExchange, logger)
	defer auditPublisher.Close()

	observability.InitMetrics(prometheus.DefaultRegisterer)
	metrics.Register(prometheus.DefaultRegisterer)

	userRepo := repositories.NewUserRepository(database)
	friendRepo := repositories.NewFriendRepository(database, publisher, logger.Named("friend_repository"))

	friendService := services.NewFriendService(friendRepo, userRepo, logger.Named("friend_service"),
		services.WithStoreTimeout(cfg.StoreTimeout),
		services.WithReadAttempts(cfg.StoreRetryAttempts),
	)
	profileService := services.NewProfileService(userRepo, friendService, services.NoActivity{}, logger.Named("profile_service"))

	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.ServiceName, cfg.Environment, logger)
	friendHandler := handlers.NewFriendHandler(friendService, auditEmitter)
	userHandler := handlers.NewUserHandler(profileService, cfg.AvatarDir, logger)

	if _, err := grpcsvc.StartGRPCServer(ctx, cfg.GRPCAddr, database, logger.Named("grpc")); err != nil {
		logger.Fatal("failed to start gRPC server", zap.Error(err))
	}

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, logger, userRepo, friendHandler, userHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", zap.Error(err))
	}
}

func newRouter(cfg config.Config, logger *zap.Logger, users middleware.UserLookup, friendHandler *handlers.FriendHandler, userHandler *handlers.UserHandler) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestLogger(logger),
		middleware.Metrics(),
		middleware.CORS(cfg.ClientOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/uploads/avatars", filepath.Clean(cfg.AvatarDir))

	api := r.Group("/api/users", middleware.SessionAuth(cfg.JWTSecret, users))
	api.GET("", friendHandler.Recommended)
	api.GET("/friends", friendHandler.ListFriends)
	api.GET("/friends/:id", friendHandler.FriendshipStatus)
	api.POST("/friend-request/:id", friendHandler.SendRequest)
	api.PUT("/friend-request/:id/accept", friendHandler.AcceptRequest)
	api.GET("/friend-requests", friendHandler.ListIncoming)
	api.GET("/outgoing-friend-requests", friendHandler.ListOutgoing)

	api.GET("/me", userHandler.GetMe)
	api.GET("/profile/stats", userHandler.GetProfileStats)
	api.PUT("/profile", userHandler.UpdateProfile)
	api.POST("/profile/picture", userHandler.UpdateProfilePicture)
	api.DELETE("/profile/picture", userHandler.DeleteProfilePicture)

	return r
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsLocal() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", cfg.ServiceName), zap.String("environment", cfg.Environment))
}

func newPublisher(ctx context.Context, cfg config.Config, exchange string, logger *zap.Logger) rabbitmq.Publisher {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set; publishing disabled", zap.String("exchange", exchange))
		return rabbitmq.NewNoopPublisher(logger)
	}
	pub, err := rabbitmq.NewPublisher(ctx, cfg.AMQPURL, exchange, logger)
	if err != nil {
		logger.Warn("failed to initialize RabbitMQ publisher", zap.String("exchange", exchange), zap.Error(err))
		return rabbitmq.NewNoopPublisher(logger)
	}
	return pub
}
