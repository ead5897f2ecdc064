package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedAnalysis struct {
	TokenCount   int     `json:"token_count"`
	ClarityScore float64 `json:"clarity_score"`
}

func newTestCache(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := newRedisClientFromRaw(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	log := logrus.New()
	log.SetOutput(io.Discard)
	return newServiceWithClient(client, "promptforge", time.Hour, log), mr
}

func TestAnalysisRoundTrip(t *testing.T) {
	s, _ := newTestCache(t)
	ctx := context.Background()

	var dest cachedAnalysis
	assert.False(t, s.GetAnalysis(ctx, "summarize this", &dest))

	s.SetAnalysis(ctx, "summarize this", cachedAnalysis{TokenCount: 4, ClarityScore: 0.7})

	require.True(t, s.GetAnalysis(ctx, "summarize this", &dest))
	assert.Equal(t, 4, dest.TokenCount)
	assert.Equal(t, 0.7, dest.ClarityScore)
}

func TestKeysIsolatePromptsAndKinds(t *testing.T) {
	s, _ := newTestCache(t)
	ctx := context.Background()

	s.SetAnalysis(ctx, "prompt one", cachedAnalysis{TokenCount: 1})

	var dest cachedAnalysis
	assert.False(t, s.GetAnalysis(ctx, "prompt two", &dest))
	assert.False(t, s.GetCostEstimate(ctx, "prompt one", &dest))
}

func TestEntriesExpire(t *testing.T) {
	s, mr := newTestCache(t)
	ctx := context.Background()

	s.SetCostEstimate(ctx, "prompt", cachedAnalysis{TokenCount: 2})

	var dest cachedAnalysis
	require.True(t, s.GetCostEstimate(ctx, "prompt", &dest))

	mr.FastForward(2 * time.Hour)
	assert.False(t, s.GetCostEstimate(ctx, "prompt", &dest))
}

func TestInvalidateDropsAllKinds(t *testing.T) {
	s, _ := newTestCache(t)
	ctx := context.Background()

	s.SetAnalysis(ctx, "prompt", cachedAnalysis{TokenCount: 1})
	s.SetCostEstimate(ctx, "prompt", cachedAnalysis{TokenCount: 2})
	s.SetSecurityScan(ctx, "prompt", cachedAnalysis{TokenCount: 3})

	s.Invalidate(ctx, "prompt")

	var dest cachedAnalysis
	assert.False(t, s.GetAnalysis(ctx, "prompt", &dest))
	assert.False(t, s.GetCostEstimate(ctx, "prompt", &dest))
	assert.False(t, s.GetSecurityScan(ctx, "prompt", &dest))
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := &Service{defaultTTL: time.Hour, prefix: "promptforge", log: log}

	ctx := context.Background()
	s.SetAnalysis(ctx, "prompt", cachedAnalysis{TokenCount: 1})

	var dest cachedAnalysis
	assert.False(t, s.GetAnalysis(ctx, "prompt", &dest))
	assert.False(t, s.Enabled())
	assert.Equal(t, false, s.Stats()["enabled"])
}
