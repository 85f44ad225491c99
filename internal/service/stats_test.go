package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/imagesearch/internal/model"
)

func TestUserStats(t *testing.T) {
	repo := &fakeHistoryRepo{}
	seedHistory(repo, 1, "cats", "dogs", "cats", "birds", "cats", "dogs", "fish")
	seedHistory(repo, 2, "cats")
	svc := NewStatsService(repo, testLogger())

	stats, err := svc.UserStats(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalSearches)
	require.NotEmpty(t, stats.TopSearches)
	assert.Equal(t, model.TermCount{Term: "cats", Count: 3}, stats.TopSearches[0])
	assert.Equal(t, model.TermCount{Term: "dogs", Count: 2}, stats.TopSearches[1])

	require.Len(t, stats.RecentSearches, 5)
	assert.Equal(t, "fish", stats.RecentSearches[0].Term)
	assert.Empty(t, stats.Warning)
}

func TestUserStats_StoreDownDegrades(t *testing.T) {
	svc := NewStatsService(&fakeHistoryRepo{pingErr: errStoreDown}, testLogger())

	stats, err := svc.UserStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSearches)
	assert.NotNil(t, stats.TopSearches)
	assert.NotNil(t, stats.RecentSearches)
	assert.Equal(t, WarningStoreUnavailable, stats.Warning)
}

func TestTopSearches_CountsAcrossUsers(t *testing.T) {
	repo := &fakeHistoryRepo{}
	seedHistory(repo, 1, "cats")
	seedHistory(repo, 2, "cats")
	svc := NewStatsService(repo, testLogger())
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	top, err := svc.TopSearches(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, top.TopSearches, 1)
	assert.Equal(t, "cats", top.TopSearches[0].Term)
	assert.Equal(t, 2, top.TopSearches[0].Count)
	assert.Equal(t, 2, top.TopSearches[0].UserCount)
	assert.Equal(t, 1, top.Total)
	assert.Equal(t, fixed, top.GeneratedAt)
}

func TestTopSearches_DefaultAndMaxLimit(t *testing.T) {
	repo := &fakeHistoryRepo{}
	seedHistory(repo, 1, "a", "b", "c", "d", "e", "f", "g")
	svc := NewStatsService(repo, testLogger())

	top, err := svc.TopSearches(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, top.TopSearches, DefaultTopSearchLimit)

	top, err = svc.TopSearches(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, top.TopSearches, 7)
}

func TestTopSearches_StoreDownDegrades(t *testing.T) {
	svc := NewStatsService(&fakeHistoryRepo{pingErr: errStoreDown}, testLogger())

	top, err := svc.TopSearches(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, top.TopSearches)
	assert.Equal(t, 0, top.Total)
	assert.Equal(t, WarningStoreUnavailable, top.Warning)
}

func TestUserStats_QueryFailureAfterPingDegrades(t *testing.T) {
	repo := &fakeHistoryRepo{queryErr: errStoreDown}
	seedHistory(repo, 1, "cats", "dogs")
	svc := NewStatsService(repo, testLogger())

	stats, err := svc.UserStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSearches)
	assert.Empty(t, stats.TopSearches)
	assert.NotNil(t, stats.RecentSearches)
	assert.Equal(t, WarningStoreUnavailable, stats.Warning)
}

func TestTopSearches_QueryFailureAfterPingDegrades(t *testing.T) {
	svc := NewStatsService(&fakeHistoryRepo{queryErr: errStoreDown}, testLogger())

	top, err := svc.TopSearches(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, top.TopSearches)
	assert.Empty(t, top.TopSearches)
	assert.Equal(t, WarningStoreUnavailable, top.Warning)
}
