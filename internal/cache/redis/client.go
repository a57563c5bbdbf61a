package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/metrics"
	"github.com/llm-monitor/backend/internal/storage/models"
	"github.com/llm-monitor/backend/pkg/logger"
)

const (
	statsPrefix       = "stats:"
	dashboardStatsKey = statsPrefix + "dashboard"
	summaryKey        = statsPrefix + "misrepresentations"
)

type Client struct {
	client   *redis.Client
	statsTTL time.Duration
}

func NewClient(host string, port int, password string, db int, statsTTL time.Duration) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("stats_ttl", statsTTL))

	return &Client{client: client, statsTTL: statsTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	logger.Debug("Cached value", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// GetJSON decodes the value at key into dst. A missing key is (false, nil).
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) GetDashboardStats(ctx context.Context) (*models.DashboardStats, bool, error) {
	var stats models.DashboardStats
	ok, err := c.GetJSON(ctx, dashboardStatsKey, &stats)
	if err != nil || !ok {
		metrics.CacheMisses.WithLabelValues("dashboard_stats").Inc()
		return nil, false, err
	}
	metrics.CacheHits.WithLabelValues("dashboard_stats").Inc()
	return &stats, true, nil
}

func (c *Client) SetDashboardStats(ctx context.Context, stats *models.DashboardStats) error {
	return c.SetJSON(ctx, dashboardStatsKey, stats, c.statsTTL)
}

func (c *Client) GetMisrepresentationSummary(ctx context.Context) (*models.MisrepresentationSummary, bool, error) {
	var summary models.MisrepresentationSummary
	ok, err := c.GetJSON(ctx, summaryKey, &summary)
	if err != nil || !ok {
		metrics.CacheMisses.WithLabelValues("misrepresentation_summary").Inc()
		return nil, false, err
	}
	metrics.CacheHits.WithLabelValues("misrepresentation_summary").Inc()
	return &summary, true, nil
}

func (c *Client) SetMisrepresentationSummary(ctx context.Context, summary *models.MisrepresentationSummary) error {
	return c.SetJSON(ctx, summaryKey, summary, c.statsTTL)
}

// InvalidateStats deletes every cached aggregate.
func (c *Client) InvalidateStats(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, statsPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Debug("Stats cache invalidated")
	return nil
}
