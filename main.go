package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-relay/internal/config"
	"payment-relay/internal/consumer"
	"payment-relay/internal/gateway"
	"payment-relay/internal/handler"
	"payment-relay/internal/repository"
	"payment-relay/internal/sender"
	"payment-relay/internal/service"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// stores is the persistence selected by STORE_DRIVER.
type stores struct {
	attributions service.AttributionStore
	notified     service.NotifiedSet
	cards        repository.CardStores
	deliveries   sender.DeliveryLogRepository
	closers      []io.Closer
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}
}

func main() {
	// 1. Configuration and logger
	cfg, err := config.Load(".env", "../.env")
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	setupLogger(cfg)
	log.WithField("store", cfg.Store.Driver).Info("Starting payment relay...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Persistence
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Could not open stores")
	}
	defer st.Close()

	// 3. Sinks
	sinks := sender.Sinks{
		Orders: sender.NewOrderSink(cfg.OrderSink.Endpoint, cfg.OrderSink.Token, cfg.OrderSink.Timeout),
		Conversions: sender.NewConversionSink(sender.ConversionConfig{
			GraphURL:      cfg.ConversionSink.GraphURL,
			APIVersion:    cfg.ConversionSink.APIVersion,
			TestEventCode: cfg.ConversionSink.TestEventCode,
			Pixels:        pixelTokens(cfg.ConversionSink),
			PublicBaseURL: cfg.Callback.PublicBaseURL,
			ThankYouPath:  cfg.Callback.ThankYouPath,
			Currency:      cfg.Currency,
			Timeout:       cfg.ConversionSink.Timeout,
		}),
	}

	var receipts *sender.ReceiptSink
	if cfg.SMTP.Enabled() {
		receipts = sender.NewReceiptSink(sender.NewSMTPEmailSender(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From,
		))
	} else {
		log.Info("SMTP environment variables are not set. Receipt emails disabled.")
	}

	if cfg.Kafka.Enabled() {
		producer, err := sender.NewKafkaProducer(cfg.Kafka.Servers())
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer func() {
			producer.Flush(5000)
			producer.Close()
		}()
		go logProducerEvents(producer)
		sinks.Publisher = sender.NewPurchasePublisher(producer, cfg.Kafka.PurchaseTopic)

		if receipts != nil {
			go runReceiptConsumer(ctx, cfg.Kafka, receipts, st.deliveries)
		}
	} else if receipts != nil {
		sinks.Receipts = receipts
	}

	notifier := sender.NewNotifier(sinks, st.deliveries, sender.NotifierOptions{
		Platform: cfg.PlatformName,
		Provider: cfg.PlatformName,
		Country:  cfg.Country,
		Currency: cfg.Currency,
	})

	// 4. Gateway and service
	gw := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		PublicKey:     cfg.Gateway.PublicKey,
		SecretKey:     cfg.Gateway.SecretKey,
		CreateTimeout: cfg.Gateway.CreateTimeout,
		StatusTimeout: cfg.Gateway.StatusTimeout,
	})
	if !gw.Configured() {
		log.Warn("Gateway credentials are not set; create requests will fail")
	}

	deps := service.Dependencies{
		Gateway:      gw,
		Attributions: st.attributions,
		Notified:     st.notified,
		Notifier:     notifier,
	}
	if len(st.cards) > 0 {
		deps.Cards = st.cards
	}
	svc := service.NewTransactionService(deps, service.Options{
		PublicBaseURL:   cfg.Callback.PublicBaseURL,
		PostbackPath:    cfg.Callback.PostbackPath,
		DisabledMethods: cfg.DisabledPaymentMethods,
	})

	// 5. HTTP server
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		handler.NewTransactionHandler(svc, cfg.APIBaseURL),
		handler.RouteConfig{PostbackPath: cfg.Callback.PostbackPath},
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Payment relay is listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown error")
	}
	log.Info("Server shutdown complete.")
}

func setupLogger(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{deliveries: repository.LogDeliveryLogRepository{}}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := repository.OpenPostgres(cfg.Store.DatabaseURL, cfg.Store.MigrationsPath)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db)
		st.attributions = repository.NewPostgresAttributionStore(db)
		st.notified = repository.NewPostgresNotifiedSet(db)
		st.cards = append(st.cards, repository.NewPostgresCardStore(db))
		st.deliveries = repository.NewPostgresDeliveryLogRepository(db)
	case config.DriverBolt:
		bolt, err := repository.OpenBoltStore(cfg.Store.BoltPath)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, bolt)
		st.attributions = bolt.Attributions()
		st.notified = bolt.Notified()
		st.cards = append(st.cards, bolt.Cards())
	default:
		st.attributions = repository.NewMemoryAttributionStore()
		st.notified = repository.NewMemoryNotifiedSet(cfg.Store.NotifiedTTL)
		st.cards = append(st.cards, repository.NewMemoryCardStore())
	}

	if cfg.Store.RedisURL != "" {
		client, err := repository.NewRedisClient(ctx, cfg.Store.RedisURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, client)
		st.notified = repository.NewRedisNotifiedSet(client, cfg.Store.NotifiedTTL)
		log.Info("Using Redis for paid-notification dedupe")
	}

	if cfg.Store.CardAuditLog != "" {
		audit, err := repository.OpenCardAuditLog(cfg.Store.CardAuditLog)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, audit)
		st.cards = append(st.cards, audit)
	}
	return st, nil
}

func pixelTokens(c config.ConversionSinkConfig) map[string]string {
	out := make(map[string]string)
	for _, pixel := range c.Destinations() {
		out[pixel] = c.Token(pixel)
	}
	return out
}

func logProducerEvents(p *kafka.Producer) {
	for e := range p.Events() {
		if kerr, ok := e.(kafka.Error); ok {
			log.WithError(kerr).Error("Kafka producer error")
		}
	}
}

func runReceiptConsumer(ctx context.Context, cfg config.KafkaConfig, receipts *sender.ReceiptSink, deliveries sender.DeliveryLogRepository) {
	client, err := consumer.NewKafkaClient(cfg.Servers(), cfg.ReceiptGroupID)
	if err != nil {
		log.WithError(err).Error("Failed to create Kafka consumer")
		return
	}
	c, err := consumer.Subscribe(client, cfg.PurchaseTopic, consumer.NewReceiptHandler(receipts, deliveries))
	if err != nil {
		log.WithError(err).Error("Failed to subscribe to topic")
		_ = client.Close()
		return
	}
	defer c.Close()
	if err := c.Run(ctx); err != nil {
		log.WithError(err).Error("Receipt consumer stopped")
	}
}
