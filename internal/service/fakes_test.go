package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// In-memory stand-ins for the sqlite repositories. Each has a pingErr
// switch to simulate the store being down.

var errStoreDown = errors.New("store down")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (f *fakeUserRepo) ResolveOrCreate(_ context.Context, p *model.Profile) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(p.Provider) + ":" + p.ProviderID
	if u, ok := f.users[key]; ok {
		return u, nil
	}
	f.nextID++
	u := &model.User{ID: f.nextID, Provider: p.Provider, ProviderID: p.ProviderID, Name: p.Name, Email: p.Email, Photo: p.Photo}
	f.users[key] = u
	return u, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(id))
}

type fakeHistoryRepo struct {
	mu          sync.Mutex
	entries     []model.HistoryEntry
	pingErr     error
	appendErr   error
	appendDelay time.Duration
	queryErr    error // reads fail even though Ping succeeds
}

func (f *fakeHistoryRepo) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeHistoryRepo) AppendHistory(_ context.Context, e *model.HistoryEntry) error {
	if f.appendDelay > 0 {
		time.Sleep(f.appendDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	e.ID = fmt.Sprintf("h-%d", len(f.entries)+1)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistoryRepo) snapshot() []model.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.HistoryEntry(nil), f.entries...)
}

// newestFirst returns userID's entries sorted by timestamp descending.
func (f *fakeHistoryRepo) newestFirst(userID int64) []model.HistoryEntry {
	var out []model.HistoryEntry
	for _, e := range f.snapshot() {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (f *fakeHistoryRepo) ListHistory(_ context.Context, userID int64, opts repository.ListOptions) ([]model.HistoryEntry, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	all := f.newestFirst(userID)
	out := []model.HistoryEntry{}
	for i := opts.Offset; i < len(all) && len(out) < opts.Limit; i++ {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeHistoryRepo) CountHistory(_ context.Context, userID int64) (int, error) {
	if f.queryErr != nil {
		return 0, f.queryErr
	}
	return len(f.newestFirst(userID)), nil
}

func (f *fakeHistoryRepo) TopTermsForUser(_ context.Context, userID int64, limit int) ([]model.TermCount, error) {
	counts := map[string]int{}
	for _, e := range f.newestFirst(userID) {
		counts[e.Term]++
	}
	out := []model.TermCount{}
	for term, n := range counts {
		out = append(out, model.TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistoryRepo) RecentForUser(_ context.Context, userID int64, limit int) ([]model.RecentSearch, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := []model.RecentSearch{}
	for _, e := range f.newestFirst(userID) {
		if len(out) == limit {
			break
		}
		out = append(out, model.RecentSearch{Term: e.Term, Timestamp: e.Timestamp})
	}
	return out, nil
}

func (f *fakeHistoryRepo) TopTermsGlobal(_ context.Context, limit int) ([]model.GlobalTermStat, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	type agg struct {
		count int
		users map[int64]bool
		last  time.Time
	}
	byTerm := map[string]*agg{}
	for _, e := range f.snapshot() {
		a, ok := byTerm[e.Term]
		if !ok {
			a = &agg{users: map[int64]bool{}}
			byTerm[e.Term] = a
		}
		a.count++
		a.users[e.UserID] = true
		if e.Timestamp.After(a.last) {
			a.last = e.Timestamp
		}
	}
	out := []model.GlobalTermStat{}
	for term, a := range byTerm {
		out = append(out, model.GlobalTermStat{Term: term, Count: a.count, UserCount: len(a.users), LastSearched: a.last})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSavedRepo struct {
	mu        sync.Mutex
	images    []model.SavedImage
	nextID    int
	pingErr   error
	failImage string // CreateSavedImage fails for this image id
	queryErr  error  // reads fail even though Ping succeeds
}

func (f *fakeSavedRepo) Ping(context.Context) error { return f.pingErr }

func (f *fakeSavedRepo) FindByImageID(_ context.Context, userID int64, imageID string) (*model.SavedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.images {
		if img.UserID == userID && img.ImageID == imageID {
			found := img
			return &found, nil
		}
	}
	return nil, apperror.NotFound("saved image", imageID)
}

func (f *fakeSavedRepo) CreateSavedImage(ctx context.Context, img *model.SavedImage) (bool, error) {
	if img.ImageID == f.failImage {
		return false, errors.New("disk full")
	}
	if existing, err := f.FindByImageID(ctx, img.UserID, img.ImageID); err == nil {
		*img = *existing
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	img.ID = fmt.Sprintf("saved-%d", f.nextID)
	img.SavedAt = time.Unix(int64(f.nextID), 0).UTC()
	f.images = append(f.images, *img)
	return true, nil
}

func (f *fakeSavedRepo) owned(userID int64) []model.SavedImage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SavedImage
	for i := len(f.images) - 1; i >= 0; i-- {
		if f.images[i].UserID == userID {
			out = append(out, f.images[i])
		}
	}
	return out
}

func (f *fakeSavedRepo) ListSavedImages(_ context.Context, userID int64, opts repository.ListOptions) ([]model.SavedImage, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	all := f.owned(userID)
	out := []model.SavedImage{}
	for i := opts.Offset; i < len(all) && len(out) < opts.Limit; i++ {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeSavedRepo) CountSavedImages(_ context.Context, userID int64) (int, error) {
	return len(f.owned(userID)), nil
}

func (f *fakeSavedRepo) DeleteSavedImage(_ context.Context, userID int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, img := range f.images {
		if img.ID == id && img.UserID == userID {
			f.images = append(f.images[:i], f.images[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("saved image", id)
}

// =========================================================================
// FAKE SEARCHER + SINK
// =========================================================================

type fakeSearcher struct {
	results []model.SearchResult
	total   int
	err     error
	calls   int
	gotTerm string
}

func (f *fakeSearcher) Search(_ context.Context, term string, perPage int) ([]model.SearchResult, int, error) {
	f.calls++
	f.gotTerm = term
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.results, f.total, nil
}

type recorded struct {
	userID int64
	term   string
	count  int
}

type fakeSink struct {
	records []recorded
}

func (f *fakeSink) Record(userID int64, term string, resultsCount int) bool {
	f.records = append(f.records, recorded{userID, term, resultsCount})
	return true
}
