package get

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/cache_impl"
	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type orderGetter interface {
	Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
	OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) (map[uuid.UUID]models.Order, error)
}

type Service struct {
	log   logger.Logger
	cache cache_impl.CacheI[uuid.UUID, *models.Order]

	orderGetter orderGetter
}

func New(log logger.Logger, cache cache_impl.CacheI[uuid.UUID, *models.Order], orderGetter orderGetter) *Service {
	return &Service{
		log:         log,
		cache:       cache,
		orderGetter: orderGetter,
	}
}

func (s *Service) OrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	const op = "services.order.get.OrderByUUID"

	if order, ok := s.cache.Get(orderUUID); ok && order != nil {
		return order, nil
	}

	order, err := s.orderGetter.Order(ctx, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_ = s.cache.Add(orderUUID, order)

	return order, nil
}

func (s *Service) OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) ([]models.Order, error) {
	const op = "services.order.get.OrdersByUUIDs"

	result, notInCache := s.partitionByCache(ctx, UUIDs, op)

	if len(notInCache) == 0 {
		return result, nil
	}

	ordersMap, err := s.orderGetter.OrdersByUUIDs(ctx, notInCache)
	if err != nil {
		if errors.Is(err, internalErrors.ErrOrderNotFound) {
			return result, nil
		}
		s.log.Error(op, logger.String("get orders error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, order := range ordersMap {
		order := order
		result = append(result, order)
		_ = s.cache.Add(order.OrderUUID, &order)
	}

	s.log.InfoContext(ctx, op, logger.Int("orders from DB", len(ordersMap)))

	return result, nil
}

func (s *Service) partitionByCache(ctx context.Context, UUIDs []uuid.UUID, op string) (result []models.Order, notInCache []uuid.UUID) {
	inCacheCh := make(chan models.Order, len(UUIDs))
	notInCacheCh := make(chan uuid.UUID, len(UUIDs))
	wg := sync.WaitGroup{}

	for _, id := range UUIDs {
		wg.Add(1)
		go func(orderUUID uuid.UUID) {
			defer wg.Done()

			if value, ok := s.cache.Get(orderUUID); ok && value != nil {
				inCacheCh <- *value
				return
			}
			notInCacheCh <- orderUUID
		}(id)
	}

	wg.Wait()
	close(inCacheCh)
	close(notInCacheCh)

	result = make([]models.Order, 0, len(UUIDs))
	for order := range inCacheCh {
		result = append(result, order)
	}

	notInCache = make([]uuid.UUID, 0, len(UUIDs))
	for orderUUID := range notInCacheCh {
		notInCache = append(notInCache, orderUUID)
	}

	s.log.InfoContext(ctx, op,
		logger.Int("items in cache", len(result)),
		logger.Int("items not in cache", len(notInCache)),
	)

	return result, notInCache
}
