package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city-quest/internal/config"
)

var testLeaderboardCfg = config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100}

func TestLeaderboardOrderingAndDerivedFields(t *testing.T) {
	f := newFixture()
	f.catalog.achievements = nil
	ctx := context.Background()

	// u1: two visits, u2: one visit, u3: one phrase.
	_, err := f.progress.RecordVisit(ctx, "u1", "loc-1")
	require.NoError(t, err)
	_, err = f.progress.RecordVisit(ctx, "u1", "loc-2")
	require.NoError(t, err)
	_, err = f.progress.RecordVisit(ctx, "u2", "loc-1")
	require.NoError(t, err)
	_, err = f.progress.LearnPhrase(ctx, "u3", "gamarjoba")
	require.NoError(t, err)

	svc := NewLeaderboardService(f.store, testLeaderboardCfg)
	entries, err := svc.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, int64(100), entries[0].TotalXP)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 2, entries[0].Level, "level is derived from XP, not stored")
	assert.Equal(t, "Visitor", entries[0].Rank)

	assert.Equal(t, "u2", entries[1].UserID)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, "u3", entries[2].UserID)
	assert.Equal(t, 3, entries[2].Position)
}

func TestLeaderboardLimitClamping(t *testing.T) {
	f := newFixture()
	svc := NewLeaderboardService(f.store, testLeaderboardCfg)
	ctx := context.Background()

	_, err := svc.TopN(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, f.store.lastLimit, "non-positive limit falls back to the default")

	_, err = svc.TopN(ctx, -5)
	require.NoError(t, err)
	assert.Equal(t, 10, f.store.lastLimit)

	_, err = svc.TopN(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, f.store.lastLimit, "limit is capped at the maximum")

	_, err = svc.TopN(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, f.store.lastLimit)
}
