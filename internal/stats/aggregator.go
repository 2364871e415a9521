package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/onlineshop/backend/internal/order"
)

type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityWeekly Granularity = "weekly"
)

// Bucket is one reporting interval. BucketStart is the UTC midnight opening
// the calendar day, or the Monday opening the ISO-8601 week.
type Bucket struct {
	BucketStart time.Time       `json:"bucket_start"`
	OrderCount  int             `json:"order_count"`
	RevenueSum  decimal.Decimal `json:"revenue_sum"`
}

type ProductStat struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type OrderSource interface {
	ListOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]order.Order, error)
}

// Aggregator computes read-only rollups over the order collection. It never
// mutates anything and tolerates bad stored data.
type Aggregator struct {
	orders OrderSource
}

func NewAggregator(orders OrderSource) *Aggregator {
	return &Aggregator{orders: orders}
}

// Revenue groups orders in [from, to) into daily or weekly buckets. An order
// whose stored total no longer parses is excluded from the revenue sum and
// logged as a data-quality fault; it still counts toward the bucket's order
// count.
func (a *Aggregator) Revenue(ctx context.Context, from, to time.Time, g Granularity) ([]Bucket, error) {
	if g != GranularityDaily && g != GranularityWeekly {
		return nil, fmt.Errorf("stats: unknown granularity %q", g)
	}

	orders, err := a.orders.ListOrdersCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("stats: failed to load orders: %w", err)
	}

	buckets := make(map[time.Time]*Bucket)
	for _, o := range orders {
		start := bucketStart(o.CreatedAt, g)
		b, ok := buckets[start]
		if !ok {
			b = &Bucket{BucketStart: start, RevenueSum: decimal.Zero}
			buckets[start] = b
		}
		b.OrderCount++

		total, err := decimal.NewFromString(o.OrderTotal)
		if err != nil {
			log.Warn().Err(err).Str("order_id", o.ID).Str("order_total", o.OrderTotal).Msg("stats: unparsable stored order total, excluded from revenue")
			continue
		}
		b.RevenueSum = b.RevenueSum.Add(total)
	}

	result := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart.Before(result[j].BucketStart)
	})

	return result, nil
}

// TopProducts sums quantity and revenue per product over [from, to) and
// returns the top n by revenue descending. Ties break by quantity
// descending, then product id ascending, so the ordering is deterministic.
func (a *Aggregator) TopProducts(ctx context.Context, from, to time.Time, n int) ([]ProductStat, error) {
	if n < 1 {
		return nil, fmt.Errorf("stats: top-n limit must be positive, got %d", n)
	}

	orders, err := a.orders.ListOrdersCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("stats: failed to load orders: %w", err)
	}

	byProduct := make(map[string]*ProductStat)
	for _, o := range orders {
		for _, line := range o.Items {
			s, ok := byProduct[line.ProductID]
			if !ok {
				s = &ProductStat{ProductID: line.ProductID, Revenue: decimal.Zero}
				byProduct[line.ProductID] = s
			}
			s.Quantity += line.Amount
			s.Revenue = s.Revenue.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Amount))))
		}
	}

	result := make([]ProductStat, 0, len(byProduct))
	for _, s := range byProduct {
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Revenue.Equal(result[j].Revenue) {
			return result[i].Revenue.GreaterThan(result[j].Revenue)
		}
		if result[i].Quantity != result[j].Quantity {
			return result[i].Quantity > result[j].Quantity
		}
		return result[i].ProductID < result[j].ProductID
	})

	if len(result) > n {
		result = result[:n]
	}

	return result, nil
}

func bucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if g == GranularityDaily {
		return day
	}
	// ISO-8601 weeks start on Monday.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
