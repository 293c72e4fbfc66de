package service

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
)

const (
	// LowStockThreshold flags products with fewer units than this
	LowStockThreshold = 5
	recentOrderCount  = 5
	statsPageSize     = 500
)

// Stats is the admin dashboard summary. Revenue leaves out cancelled orders.
type Stats struct {
	ProductCount   int
	OrderCount     int
	Revenue        decimal.Decimal
	TotalInventory int
	LowStock       []*domain.Product
	OrdersByStatus map[domain.OrderStatus]int
	RecentOrders   []*domain.Order
}

type statsService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewStatsService(repos *repository.Repositories, logger *zap.Logger) *statsService {
	return &statsService{
		repos:  repos,
		logger: logger,
	}
}

// Stats walks the whole catalog and order book page by page
func (s *statsService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Revenue:        decimal.Zero,
		LowStock:       []*domain.Product{},
		OrdersByStatus: make(map[domain.OrderStatus]int),
	}

	for offset := 0; ; {
		page, total, err := s.repos.Product.List(ctx, domain.ProductFilter{Limit: statsPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			stats.ProductCount++
			stats.TotalInventory += p.Stock
			if p.Stock < LowStockThreshold {
				stats.LowStock = append(stats.LowStock, p)
			}
		}
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	for offset := 0; ; {
		page, total, err := s.repos.Order.List(ctx, domain.OrderFilter{Limit: statsPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, o := range page {
			stats.OrderCount++
			stats.OrdersByStatus[o.Status]++
			if o.Status != domain.OrderStatusCancelled {
				stats.Revenue = stats.Revenue.Add(o.Total)
			}
			if len(stats.RecentOrders) < recentOrderCount {
				stats.RecentOrders = append(stats.RecentOrders, o)
			}
		}
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	slices.SortStableFunc(stats.LowStock, func(a, b *domain.Product) int {
		return cmp.Compare(a.Stock, b.Stock)
	})

	s.logger.Debug("Computed store stats",
		zap.Int("products", stats.ProductCount),
		zap.Int("orders", stats.OrderCount),
	)
	return stats, nil
}
