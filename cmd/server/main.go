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

	"github.com/ViviZhou160916/medicine-inventory/config"
	"github.com/ViviZhou160916/medicine-inventory/internal/api"
	"github.com/ViviZhou160916/medicine-inventory/internal/broker"
	"github.com/ViviZhou160916/medicine-inventory/internal/notify"
	"github.com/ViviZhou160916/medicine-inventory/internal/redisclient"
	"github.com/ViviZhou160916/medicine-inventory/internal/scheduler"
	"github.com/ViviZhou160916/medicine-inventory/internal/service"
	"github.com/ViviZhou160916/medicine-inventory/internal/store"
	"github.com/ViviZhou160916/medicine-inventory/internal/util"
	"github.com/ViviZhou160916/medicine-inventory/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting medicine inventory service")

	tp, err := util.InitTracer("medicine-inventory", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	gateway := notify.NewServerChanGateway(cfg.Notify.ServerChanKey, cfg.Notify.Timeout)

	ledger := service.NewLedgerService(db, db, eventPublisher, redisClient)
	itemService := service.NewItemService(db, db)
	alertEngine := service.NewAlertEngine(db, db, gateway, eventPublisher, cfg.Alerts)
	dashboard := service.NewDashboardService(db, redisClient)

	sched := scheduler.New(redisClient, cfg.Jobs.RunTimeout)
	sched.RegisterDaily("sweep", cfg.Jobs.SweepHour, cfg.Jobs.SweepMinute, func(ctx context.Context) error {
		_, err := alertEngine.Sweep(ctx, time.Now())
		return err
	})
	sched.RegisterWeekly("cleanup", cfg.Jobs.CleanupWeekday, cfg.Jobs.CleanupHour, cfg.Jobs.CleanupMinute, func(ctx context.Context) error {
		_, err := alertEngine.Cleanup(ctx, time.Now())
		return err
	})
	sched.Start(context.Background())
	defer sched.Stop()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	resolverConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock, cfg.Kafka.ConsumerGroup)
	resolverWorker := worker.NewAlertResolverWorker(resolverConsumer, alertEngine)
	go func() {
		if err := resolverWorker.Start(workerCtx); err != nil {
			log.Printf("Alert resolver worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(ledger, itemService, dashboard, sched, db)
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
	resolverWorker.Stop()

	log.Println("Server exited")
}
