package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/config"
)

// Service caches prompt analysis, cost estimates, and security scans keyed
// by a hash of the prompt. All operations degrade to misses when disabled.
type Service struct {
	redis      *RedisClient
	enabled    bool
	defaultTTL time.Duration
	prefix     string
	log        *logrus.Logger
}

// NewService connects to Redis and probes it. A failed probe disables
// caching instead of failing startup.
func NewService(redisCfg config.RedisConfig, cacheCfg config.CacheConfig, log *logrus.Logger) *Service {
	s := &Service{
		defaultTTL: cacheCfg.DefaultTTL,
		prefix:     cacheCfg.KeyPrefix,
		log:        log,
	}
	if !cacheCfg.Enabled {
		log.Info("Result caching disabled by configuration")
		return s
	}

	client := NewRedisClient(redisCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		log.WithError(err).Warn("Redis unreachable, result caching disabled")
		_ = client.Close()
		return s
	}

	s.redis = client
	s.enabled = true
	log.WithField("addr", redisCfg.Addr).Info("Connected to Redis")
	return s
}

// newServiceWithClient builds an enabled service around an existing client.
// Used by tests.
func newServiceWithClient(client *RedisClient, prefix string, ttl time.Duration, log *logrus.Logger) *Service {
	return &Service{
		redis:      client,
		enabled:    true,
		defaultTTL: ttl,
		prefix:     prefix,
		log:        log,
	}
}

// Enabled reports whether the cache is active.
func (s *Service) Enabled() bool {
	return s.enabled
}

// GetAnalysis loads a cached prompt analysis into dest.
func (s *Service) GetAnalysis(ctx context.Context, prompt string, dest interface{}) bool {
	return s.get(ctx, s.key("analysis", prompt), dest)
}

// SetAnalysis caches a prompt analysis.
func (s *Service) SetAnalysis(ctx context.Context, prompt string, analysis interface{}) {
	s.set(ctx, s.key("analysis", prompt), analysis)
}

// GetCostEstimate loads a cached cost estimate into dest.
func (s *Service) GetCostEstimate(ctx context.Context, prompt string, dest interface{}) bool {
	return s.get(ctx, s.key("cost", prompt), dest)
}

// SetCostEstimate caches a cost estimate.
func (s *Service) SetCostEstimate(ctx context.Context, prompt string, estimate interface{}) {
	s.set(ctx, s.key("cost", prompt), estimate)
}

// GetSecurityScan loads a cached security scan into dest.
func (s *Service) GetSecurityScan(ctx context.Context, prompt string, dest interface{}) bool {
	return s.get(ctx, s.key("scan", prompt), dest)
}

// SetSecurityScan caches a security scan.
func (s *Service) SetSecurityScan(ctx context.Context, prompt string, scan interface{}) {
	s.set(ctx, s.key("scan", prompt), scan)
}

// Invalidate drops every cached result for the prompt.
func (s *Service) Invalidate(ctx context.Context, prompt string) {
	if !s.enabled {
		return
	}
	for _, kind := range []string{"analysis", "cost", "scan"} {
		if err := s.redis.Delete(ctx, s.key(kind, prompt)); err != nil {
			s.log.WithError(err).Warn("Failed to invalidate cache entry")
		}
	}
}

// Stats describes the cache for health reporting.
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enabled":     s.enabled,
		"default_ttl": s.defaultTTL.String(),
		"key_prefix":  s.prefix,
	}
}

// Close releases the Redis connection.
func (s *Service) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func (s *Service) get(ctx context.Context, key string, dest interface{}) bool {
	if !s.enabled {
		return false
	}
	found, err := s.redis.Get(ctx, key, dest)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return found
}

func (s *Service) set(ctx context.Context, key string, value interface{}) {
	if !s.enabled {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.defaultTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (s *Service) key(kind, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, hex.EncodeToString(sum[:]))
}
