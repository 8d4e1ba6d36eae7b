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

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/gateway"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/tracking"
	"checkout-service/internal/util"
	"checkout-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service")

	tp, err := util.InitTracer("checkout-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	if err := store.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	callbackProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCallbacks)
	defer callbackProducer.Close()
	dataLayerProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDataLayer)
	defer dataLayerProducer.Close()
	logger.Info("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(orderProducer, callbackProducer)

	tracker := newTracker(cfg, dataLayerProducer)
	gate := tracker.Gate()
	gate.Arm()

	paymentService := service.NewPaymentService(db, db, gateway.Options{
		HTTPClient: &http.Client{},
		Timeout:    time.Duration(cfg.Business.PaymentTimeoutSeconds) * time.Second,
	})

	orchestrator := service.NewCheckoutOrchestrator(
		db,
		paymentService,
		redisClient,
		redisClient,
		tracker,
		gate,
		eventPublisher,
		service.CheckoutConfig{
			DeliveryCharge: cfg.Business.DeliveryCharge,
			Currency:       cfg.Business.Currency,
			PublicURL:      cfg.Server.PublicURL,
			LockTTL:        time.Duration(cfg.Business.CheckoutLockSeconds) * time.Second,
		},
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	callbackConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCallbacks, cfg.Kafka.ConsumerGroup)
	callbackWorker := worker.NewCallbackWorker(callbackConsumer, orchestrator)
	go func() {
		if err := callbackWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Callback worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Dependencies{
		Checkout:    orchestrator,
		Tracker:     tracker,
		Gate:        gate,
		Callbacks:   eventPublisher,
		Claims:      redisClient,
		FrontendURL: cfg.Server.FrontendURL,
		Checks: map[string]api.ReadinessCheck{
			"database": func(context.Context) error { return db.Ping() },
			"redis":    redisClient.Ping,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := callbackWorker.Stop(); err != nil {
		logger.Error("Failed to stop callback worker", zap.Error(err))
	}
	orchestrator.Wait()

	logger.Info("Server exited")
}

// newTracker builds the tracking pipeline. Destinations are initialized by
// the activation gate, not here.
func newTracker(cfg *config.Config, dataLayer *broker.Producer) *tracking.Tracker {
	tc := cfg.Tracking
	httpClient := &http.Client{Timeout: time.Duration(tc.DispatchTimeoutSeconds) * time.Second}

	var destinations []tracking.Destination
	if tc.Enabled {
		destinations = append(destinations,
			tracking.NewDataLayer(broker.NewDataLayerQueue(dataLayer)),
			tracking.NewPixel(tracking.NewImagePixel(tc.PixelID, tc.PixelEndpoint, httpClient)),
			tracking.NewConversions(tracking.ConversionsConfig{
				Endpoint:      tc.CAPIEndpoint,
				Version:       tc.CAPIVersion,
				PixelID:       tc.PixelID,
				AccessToken:   tc.CAPIAccessToken,
				TestEventCode: tc.TestEventCode,
			}, httpClient),
		)
	}

	dispatcher := tracking.NewDispatcher(time.Duration(tc.DispatchTimeoutSeconds)*time.Second, destinations...)
	gate := tracking.NewGate(time.Duration(tc.ActivationTimeoutSeconds)*time.Second, dispatcher.Init)
	return tracking.NewTracker(tracking.NewComposer(cfg.Business.Currency), dispatcher, gate)
}
