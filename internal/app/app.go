// Package app assembles the service: storage, cache, dispatcher with its
// handler registrations, the Kafka consumer group and the HTTP edge.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	httpapp "github.com/grubline/fulfillment_service/internal/app/http"
	"github.com/grubline/fulfillment_service/internal/cache_impl"
	"github.com/grubline/fulfillment_service/internal/config"
	fulfillment_http "github.com/grubline/fulfillment_service/internal/delivery/http"
	"github.com/grubline/fulfillment_service/internal/dispatcher"
	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/internal/geo"
	"github.com/grubline/fulfillment_service/internal/metrics"
	deliveryRepository "github.com/grubline/fulfillment_service/internal/repository/delivery"
	orderRepository "github.com/grubline/fulfillment_service/internal/repository/order"
	outboxRepository "github.com/grubline/fulfillment_service/internal/repository/outbox"
	deliveryService "github.com/grubline/fulfillment_service/internal/services/delivery"
	orderApplyService "github.com/grubline/fulfillment_service/internal/services/order/apply"
	orderRetrievalService "github.com/grubline/fulfillment_service/internal/services/order/get"
	orderStartService "github.com/grubline/fulfillment_service/internal/services/order/start"
	"github.com/grubline/fulfillment_service/internal/webhook"
	"github.com/grubline/fulfillment_service/pkg/brokers/kafka/consumer"
	"github.com/grubline/fulfillment_service/pkg/databases/postgres"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type App struct {
	log logger.Logger

	HTTPServer *httpapp.App

	db        *postgres.PgDB
	consumers []*consumer.Consumer
}

func NewApp(ctx context.Context, log logger.Logger, cfg *config.Config, dsn string) (*App, error) {
	db, err := postgres.NewPostgresDB(ctx, log, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	orderRepo := orderRepository.NewRepository(log, db.GetDB())
	deliveryRepo := deliveryRepository.NewRepository(log, db.GetDB())
	outboxRepo := outboxRepository.New(log, db.GetDB())

	registry := metrics.NewRegistry()

	cache := setupCache(log)

	orderStartSvc := orderStartService.New(log, registry, orderRepo)
	orderApplySvc := orderApplyService.New(log, registry, orderRepo, orderRepo)
	orderRetrievalSvc := orderRetrievalService.New(log, cache, orderRepo)

	deliverySvc := deliveryService.New(
		log,
		geo.FeeSchedule{
			BaseCents:  cfg.Delivery.BaseFeeCents,
			PerKmCents: cfg.Delivery.PerKmFeeCents,
		},
		deliveryRepo,
		deliveryRepo,
		deliveryRepo,
	)

	eventDispatcher := dispatcher.New(log, registry, cfg.Dispatcher.HandlerTimeout, cfg.Dispatcher.MaxAttempts)
	registerHandlers(eventDispatcher, orderStartSvc, orderApplySvc)

	webhookAdapter := webhook.NewAdapter(log, cfg.Webhook.PaymentSecret)

	handler := fulfillment_http.NewHandler(
		log,
		orderRetrievalSvc,
		deliverySvc,
		webhookAdapter,
		outboxRepo,
		registry.Handler(),
	)

	consumers, err := setupConsumers(log, cfg, eventDispatcher)
	if err != nil {
		return nil, err
	}

	return &App{
		log:        log,
		HTTPServer: httpapp.NewApp(log, handler, cfg.HTTP.Port),
		db:         db,
		consumers:  consumers,
	}, nil
}

// registerHandlers binds every inbound event type to its handler. The
// submission event creates the aggregate; all other types fold into the
// generic transition handler.
func registerHandlers(d *dispatcher.Dispatcher, startSvc *orderStartService.Service, applySvc *orderApplyService.Service) {
	d.Register(models.OrderSubmitted, startSvc.Handle)

	for _, eventType := range []models.EventType{
		models.OrderStarted,
		models.StockConfirmed,
		models.PaymentSucceeded,
		models.PaymentFailed,
		models.PreparationStarted,
		models.KitchenOrderReady,
		models.DeliveryDispatched,
		models.DeliveryCompleted,
		models.CustomerConfirmed,
		models.OrderCancelled,
	} {
		d.Register(eventType, applySvc.Handle)
	}
}

// RunConsumers runs the consumer group members until the context is cancelled.
// Members of one group split the topic's partitions between them, so the
// worker count only adds parallelism up to the partition count.
func (a *App) RunConsumers(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, c := range a.consumers {
		c := c
		group.Go(func() error {
			return c.Run(ctx)
		})
	}

	return group.Wait()
}

func (a *App) Stop(ctx context.Context) error {
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.log.Error("app.Stop", logger.String("close consumer error", err.Error()))
		}
	}

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}

	return nil
}

func setupConsumers(log logger.Logger, cfg *config.Config, d *dispatcher.Dispatcher) ([]*consumer.Consumer, error) {
	workers := cfg.Dispatcher.Workers
	if workers < 1 {
		workers = 1
	}

	consumers := make([]*consumer.Consumer, 0, workers)
	for i := 0; i < workers; i++ {
		c, err := consumer.New(log, cfg.Kafka.BrokerList, cfg.Kafka.ConsumerGroup, cfg.Kafka.EventTopic, d)
		if err != nil {
			return nil, fmt.Errorf("create consumer: %w", err)
		}
		consumers = append(consumers, c)
	}

	return consumers, nil
}

func setupCache(log logger.Logger) *cache_impl.Cache {
	hashicorpCache := expirable.NewLRU[uuid.UUID, *models.Order](128, nil, time.Minute*10)

	return cache_impl.NewCache(hashicorpCache, log)
}
