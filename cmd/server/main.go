package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emi-service/config"
	"emi-service/internal/api"
	"emi-service/internal/broker"
	"emi-service/internal/redisclient"
	"emi-service/internal/service"
	"emi-service/internal/session"
	"emi-service/internal/store"
	"emi-service/internal/util"
	"emi-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting emi service")

	tp, err := util.InitTracer("emi-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	sessions := session.NewMemoryStore()

	lockTTL := time.Duration(cfg.Business.LockTTLSeconds) * time.Second
	emiService := service.NewEmiService(db, sessions, redisClient, eventPublisher, cfg.Business.PaymentBaseURL, lockTTL)
	bookingService := service.NewBookingService(db, eventPublisher, redisClient, cfg.Business.Currency, cfg.Business.RefundRateBps)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	completionConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, cfg.Kafka.ConsumerGroup)
	completionWorker := worker.NewCompletionWorker(completionConsumer, db, eventPublisher)
	go func() {
		if err := completionWorker.Start(workerCtx); err != nil {
			log.Printf("Completion worker error: %v", err)
		}
	}()

	sessionTTL := time.Duration(cfg.Business.SessionTTLMinutes) * time.Minute
	sweepInterval := time.Duration(cfg.Business.SessionSweepSeconds) * time.Second
	reaper := worker.NewSessionReaper(sessions, eventPublisher, sessionTTL, sweepInterval)
	go func() {
		if err := reaper.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Session reaper error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(emiService, bookingService, cfg.Auth.JWTSecret, cfg.Server.AllowedOrigins)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	completionWorker.Stop()

	log.Println("Server exited")
}
