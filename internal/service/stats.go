package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

const (
	userTopTerms    = 10
	userRecentTerms = 5
)

// StatsService aggregates search history. Reads degrade to zeroed results
// with a warning when the store is down.
type StatsService struct {
	repo   repository.HistoryRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewStatsService(repo repository.HistoryRepository, logger *slog.Logger) *StatsService {
	return &StatsService{repo: repo, logger: logger, now: time.Now}
}

// UserStats returns userID's total search count, ten most frequent terms,
// and five most recent searches. The three queries run concurrently; if
// any of them fails the whole result degrades, never a partial mix.
func (s *StatsService) UserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	stats := &model.UserStats{
		TopSearches:    []model.TermCount{},
		RecentSearches: []model.RecentSearch{},
	}
	if !storeUp(ctx, s.repo, s.logger, "user stats") {
		stats.Warning = WarningStoreUnavailable
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountHistory(gctx, userID)
		if err != nil {
			return fmt.Errorf("counting searches: %w", err)
		}
		stats.TotalSearches = n
		return nil
	})
	g.Go(func() error {
		top, err := s.repo.TopTermsForUser(gctx, userID, userTopTerms)
		if err != nil {
			return fmt.Errorf("top terms: %w", err)
		}
		stats.TopSearches = top
		return nil
	})
	g.Go(func() error {
		recent, err := s.repo.RecentForUser(gctx, userID, userRecentTerms)
		if err != nil {
			return fmt.Errorf("recent searches: %w", err)
		}
		stats.RecentSearches = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		queryFailed(s.logger, "user stats", err)
		return &model.UserStats{
			TopSearches:    []model.TermCount{},
			RecentSearches: []model.RecentSearch{},
			Warning:        WarningStoreUnavailable,
		}, nil
	}
	return stats, nil
}

// TopSearches returns the cross-user leaderboard. It needs no session.
func (s *StatsService) TopSearches(ctx context.Context, limit int) (*model.TopSearches, error) {
	limit, _ = clampPage(limit, 0, DefaultTopSearchLimit)
	out := &model.TopSearches{
		TopSearches: []model.GlobalTermStat{},
		GeneratedAt: s.now().UTC(),
	}
	if !storeUp(ctx, s.repo, s.logger, "top searches") {
		out.Warning = WarningStoreUnavailable
		return out, nil
	}

	top, err := s.repo.TopTermsGlobal(ctx, limit)
	if err != nil {
		queryFailed(s.logger, "top searches", err)
		out.Warning = WarningStoreUnavailable
		return out, nil
	}
	out.TopSearches = top
	out.Total = len(top)
	return out, nil
}
