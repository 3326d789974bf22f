package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamforge/comment-service/internal/bus"
	"github.com/streamforge/comment-service/internal/comment"
	"github.com/streamforge/comment-service/internal/config"
	"github.com/streamforge/comment-service/internal/logger"
	"github.com/streamforge/comment-service/internal/migration"
	"github.com/streamforge/comment-service/internal/queue"
	"github.com/streamforge/comment-service/internal/repository"
	"github.com/streamforge/comment-service/internal/server"
	"github.com/streamforge/comment-service/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.Load()

	// Redis carries the distributed channel, the hot cache and the durable
	// queue. Failing to reach it before serving is the one startup error
	// that must terminate the process.
	redisClient, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}

	dynamoClient, err := repository.NewDynamoDBClient(cfg.DynamoDB)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize DynamoDB client")
	}

	migrator := migration.NewDynamoDBMigrator(dynamoClient, &cfg.DynamoDB, log)
	if err := migrator.CreateTables(); err != nil {
		log.WithError(err).Fatal("failed to create DynamoDB tables")
	}

	store := repository.NewDynamoDBStore(dynamoClient, cfg.DynamoDB)
	cache := repository.NewRedisCache(redisClient, cfg.Cache)

	fanout := bus.New(bus.NewLocal(), redisClient, cfg.InstanceID, log)
	hub := server.NewHub(fanout, log)

	persistQueue := queue.NewRedisQueue(redisClient, cfg.Queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := queue.NewConsumer(redisClient, store, persistQueue, log, cfg.Queue)
	if err := consumer.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start persistence consumer")
	}

	policy := comment.Policy{
		Mode:       cfg.Persist.Mode,
		SampleRate: cfg.Persist.SampleRate,
	}
	comments := service.NewCommentService(store, cache, fanout, persistQueue, policy, log)
	httpHandler := service.NewHTTPHandler(comments, log)
	wsHandler := service.NewWebSocketHandler(comments, hub, log)

	router := mux.NewRouter()
	router.Use(server.LoggingMiddleware(log))
	router.HandleFunc("/api/comments", httpHandler.SubmitComment).Methods(http.MethodPost)
	router.HandleFunc("/api/comments", httpHandler.ListComments).Methods(http.MethodGet)
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		log.WithField("addr", cfg.Server.HTTPPort).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start HTTP server")
		}
	}()

	log.Info("comment service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server forced to shutdown")
	}

	hub.Close()
	comments.Close()

	if err := redisClient.Close(); err != nil {
		log.WithError(err).Warn("closing Redis client")
	}

	log.Info("stopped")
}
