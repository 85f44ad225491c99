package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

// recordTimeout bounds a single background history write.
const recordTimeout = 5 * time.Second

// HistoryRecorder appends search history off the request path.
//
// Record puts the entry on a bounded queue and returns immediately; a
// fixed set of workers drains the queue into the store. When the queue is
// full the entry is dropped, and when the store is down the write is
// skipped. Both cases are logged and neither reaches the caller.
//
// Stop closes the queue and waits for the workers to write what is left.
type HistoryRecorder struct {
	repo    repository.HistoryRepository
	logger  *slog.Logger
	workers int

	mu     sync.RWMutex // guards closed and the send on queue
	closed bool
	queue  chan model.HistoryEntry

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	now func() time.Time
}

func NewHistoryRecorder(repo repository.HistoryRepository, queueSize, workers int, logger *slog.Logger) *HistoryRecorder {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &HistoryRecorder{
		repo:    repo,
		logger:  logger,
		workers: workers,
		queue:   make(chan model.HistoryEntry, queueSize),
		now:     time.Now,
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (r *HistoryRecorder) Start() {
	r.startOnce.Do(func() {
		r.logger.Info("starting history recorder",
			slog.Int("workers", r.workers),
			slog.Int("queue_size", cap(r.queue)),
		)
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.worker()
		}
	})
}

// Stop stops accepting entries and blocks until the queue is drained.
func (r *HistoryRecorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()

		r.wg.Wait()
		r.logger.Info("history recorder stopped")
	})
}

// Record queues one entry. It never blocks and reports whether the entry
// was accepted.
func (r *HistoryRecorder) Record(userID int64, term string, resultsCount int) bool {
	entry := model.HistoryEntry{
		UserID:       userID,
		Term:         term,
		Timestamp:    r.now().UTC(),
		ResultsCount: resultsCount,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.queue <- entry:
		return true
	default:
		r.logger.Warn("history queue full, dropping entry",
			slog.Int64("user_id", userID),
			slog.String("term", term),
		)
		return false
	}
}

func (r *HistoryRecorder) worker() {
	defer r.wg.Done()
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *HistoryRecorder) write(entry model.HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if !storeUp(ctx, r.repo, r.logger, "record history") {
		return
	}
	if err := r.repo.AppendHistory(ctx, &entry); err != nil {
		r.logger.Error("failed to record search history",
			slog.Int64("user_id", entry.UserID),
			slog.String("term", entry.Term),
			slog.String("error", err.Error()),
		)
	}
}

// HistoryService serves a user's own search history.
type HistoryService struct {
	repo   repository.HistoryRepository
	logger *slog.Logger
}

func NewHistoryService(repo repository.HistoryRepository, logger *slog.Logger) *HistoryService {
	return &HistoryService{repo: repo, logger: logger}
}

// List returns one page of userID's history, newest first. An
// unreachable store yields an empty page with a warning, not an error.
func (s *HistoryService) List(ctx context.Context, userID int64, limit, skip int) (*model.HistoryPage, error) {
	if !storeUp(ctx, s.repo, s.logger, "list history") {
		return &model.HistoryPage{History: []model.HistoryEntry{}, Warning: WarningStoreUnavailable}, nil
	}

	limit, skip = clampPage(limit, skip, DefaultHistoryLimit)
	entries, err := s.repo.ListHistory(ctx, userID, repository.ListOptions{Limit: limit, Offset: skip})
	if err != nil {
		queryFailed(s.logger, "list history", err)
		return &model.HistoryPage{History: []model.HistoryEntry{}, Limit: limit, Skip: skip, Warning: WarningStoreUnavailable}, nil
	}
	total, err := s.repo.CountHistory(ctx, userID)
	if err != nil {
		queryFailed(s.logger, "count history", err)
		return &model.HistoryPage{History: []model.HistoryEntry{}, Limit: limit, Skip: skip, Warning: WarningStoreUnavailable}, nil
	}

	return &model.HistoryPage{History: entries, Total: total, Limit: limit, Skip: skip}, nil
}
