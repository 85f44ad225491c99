package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/unsplash"
)

const (
	// livePageSize is how many results one live search requests.
	livePageSize = 30
	// PlaceholderCount is the size of every placeholder result set.
	PlaceholderCount = 12

	WarningPlaceholderFallback = "Using placeholder images due to API error"
)

// ImageSearcher is the external image provider. *unsplash.Client
// implements it; tests substitute a fake.
//
// Implementations report a rejected key with unsplash.ErrUnauthorized and
// an exhausted quota with unsplash.ErrRateLimited. Any other error is
// treated as transient.
type ImageSearcher interface {
	Search(ctx context.Context, term string, perPage int) ([]model.SearchResult, int, error)
}

// HistorySink receives one record per successful search. Record must not
// block; HistoryRecorder is the production implementation.
type HistorySink interface {
	Record(userID int64, term string, resultsCount int) bool
}

// SearchService proxies searches to the image provider.
type SearchService struct {
	searcher ImageSearcher // nil when no access key is configured
	history  HistorySink
	logger   *slog.Logger
}

// NewSearchService wires the proxy. Pass a nil searcher to serve
// placeholders only.
func NewSearchService(searcher ImageSearcher, history HistorySink, logger *slog.Logger) *SearchService {
	return &SearchService{
		searcher: searcher,
		history:  history,
		logger:   logger,
	}
}

// Search runs term for userID.
//
// Outcomes:
//   - blank term: validation error, nothing recorded
//   - no provider configured: placeholder results
//   - provider rejects the key or rate-limits: surfaced as an error
//   - any other provider failure: placeholder results plus a warning
//
// Every successful response, live or placeholder, is queued for history.
func (s *SearchService) Search(ctx context.Context, userID int64, term string) (*model.SearchResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperror.ValidationFailed("term", "Search term is required")
	}

	resp, err := s.lookup(ctx, term)
	if err != nil {
		return nil, err
	}

	if !s.history.Record(userID, term, len(resp.Results)) {
		s.logger.Warn("search history not recorded",
			slog.Int64("user_id", userID),
			slog.String("term", term),
		)
	}
	return resp, nil
}

func (s *SearchService) lookup(ctx context.Context, term string) (*model.SearchResponse, error) {
	if s.searcher == nil {
		return placeholderResponse(term, ""), nil
	}

	results, total, err := s.searcher.Search(ctx, term, livePageSize)
	switch {
	case err == nil:
		return &model.SearchResponse{
			Term:    term,
			Results: results,
			Total:   total,
			Source:  model.SourceUnsplash,
		}, nil
	case errors.Is(err, unsplash.ErrUnauthorized):
		s.logger.Error("image provider rejected access key")
		return nil, apperror.UpstreamCredential("Invalid Unsplash API key. Please check your configuration.")
	case errors.Is(err, unsplash.ErrRateLimited):
		s.logger.Warn("image provider rate limit exceeded")
		return nil, apperror.UpstreamRateLimited("Unsplash API rate limit exceeded. Please try again later.")
	case ctx.Err() != nil:
		// The client went away; there is nobody to serve placeholders to.
		return nil, fmt.Errorf("searching %q: %w", term, ctx.Err())
	default:
		s.logger.Warn("image provider failed, serving placeholders",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		return placeholderResponse(term, WarningPlaceholderFallback), nil
	}
}

func placeholderResponse(term, warning string) *model.SearchResponse {
	results := Placeholder(term)
	return &model.SearchResponse{
		Term:    term,
		Results: results,
		Total:   len(results),
		Source:  model.SourcePlaceholder,
		Warning: warning,
	}
}

// Placeholder returns PlaceholderCount deterministic results for term.
// The same term always produces the same URLs.
func Placeholder(term string) []model.SearchResult {
	q := strings.ReplaceAll(url.QueryEscape(term), "+", "%20")
	results := make([]model.SearchResult, PlaceholderCount)
	for i := range results {
		full := fmt.Sprintf("https://source.unsplash.com/800x600/?%s&sig=%d", q, i)
		results[i] = model.SearchResult{
			ID:          fmt.Sprintf("%s-%d", term, i),
			Title:       fmt.Sprintf("%s image %d", term, i+1),
			URL:         full,
			Thumbnail:   fmt.Sprintf("https://source.unsplash.com/400x300/?%s&sig=%d", q, i),
			Author:      "Unsplash",
			AuthorURL:   "https://unsplash.com",
			DownloadURL: full,
		}
	}
	return results
}
