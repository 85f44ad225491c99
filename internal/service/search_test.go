package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/unsplash"
)

func newTestSearch(searcher ImageSearcher) (*SearchService, *fakeSink) {
	sink := &fakeSink{}
	return NewSearchService(searcher, sink, testLogger()), sink
}

// =========================================================================
// VALIDATION
// =========================================================================

func TestSearch_BlankTermRejected(t *testing.T) {
	searcher := &fakeSearcher{}
	svc, sink := newTestSearch(searcher)

	for _, term := range []string{"", "   ", "\t\n"} {
		_, err := svc.Search(context.Background(), 1, term)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "term %q: got %v", term, err)
	}

	assert.Zero(t, searcher.calls, "no provider call for blank terms")
	assert.Empty(t, sink.records, "no history for blank terms")
}

// =========================================================================
// PLACEHOLDER PATH
// =========================================================================

func TestSearch_NoProviderServesPlaceholders(t *testing.T) {
	svc, sink := newTestSearch(nil)

	resp, err := svc.Search(context.Background(), 7, "  nature ")
	require.NoError(t, err)

	assert.Equal(t, "nature", resp.Term)
	assert.Equal(t, model.SourcePlaceholder, resp.Source)
	assert.Len(t, resp.Results, 12)
	assert.Equal(t, 12, resp.Total)
	assert.Empty(t, resp.Warning)

	require.Len(t, sink.records, 1)
	assert.Equal(t, recorded{userID: 7, term: "nature", count: 12}, sink.records[0])
}

func TestPlaceholder_Deterministic(t *testing.T) {
	a := Placeholder("red car")
	b := Placeholder("red car")
	assert.Equal(t, a, b)

	require.Len(t, a, PlaceholderCount)
	assert.Equal(t, model.SearchResult{
		ID:          "red car-0",
		Title:       "red car image 1",
		URL:         "https://source.unsplash.com/800x600/?red%20car&sig=0",
		Thumbnail:   "https://source.unsplash.com/400x300/?red%20car&sig=0",
		Author:      "Unsplash",
		AuthorURL:   "https://unsplash.com",
		DownloadURL: "https://source.unsplash.com/800x600/?red%20car&sig=0",
	}, a[0])

	ids := map[string]bool{}
	for i, r := range a {
		ids[r.ID] = true
		assert.True(t, strings.HasSuffix(r.URL, fmt.Sprintf("sig=%d", i)))
	}
	assert.Len(t, ids, PlaceholderCount, "ids are unique")
}

// =========================================================================
// LIVE PATH
// =========================================================================

func TestSearch_LiveResults(t *testing.T) {
	searcher := &fakeSearcher{
		results: []model.SearchResult{{ID: "a", Title: "A", URL: "u"}, {ID: "b", Title: "B", URL: "u"}},
		total:   500,
	}
	svc, sink := newTestSearch(searcher)

	resp, err := svc.Search(context.Background(), 3, " cats ")
	require.NoError(t, err)

	assert.Equal(t, "cats", searcher.gotTerm, "provider receives the trimmed term")
	assert.Equal(t, model.SourceUnsplash, resp.Source)
	assert.Equal(t, 500, resp.Total)
	assert.Len(t, resp.Results, 2)
	require.Len(t, sink.records, 1)
	assert.Equal(t, 2, sink.records[0].count)
}

func TestSearch_ProviderFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantErr     error
		wantWarning string
	}{
		{"bad key is surfaced", unsplash.ErrUnauthorized, apperror.ErrUpstreamCredential, ""},
		{"rate limit is surfaced", unsplash.ErrRateLimited, apperror.ErrUpstreamRateLimited, ""},
		{"transient degrades", errors.New("unsplash: unexpected status 502"), nil, WarningPlaceholderFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, sink := newTestSearch(&fakeSearcher{err: tt.err})

			resp, err := svc.Search(context.Background(), 1, "nature")

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Empty(t, sink.records)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.SourcePlaceholder, resp.Source)
			assert.Equal(t, tt.wantWarning, resp.Warning)
			assert.Len(t, resp.Results, PlaceholderCount)
			assert.Len(t, sink.records, 1)
		})
	}
}

func TestSearch_CanceledContextIsNotMasked(t *testing.T) {
	svc, sink := newTestSearch(&fakeSearcher{err: context.Canceled})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Search(ctx, 1, "nature")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.records)
}
