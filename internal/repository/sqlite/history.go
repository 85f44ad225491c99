package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

var _ repository.HistoryRepository = (*DB)(nil)

const defaultHistoryPage = 20

// AppendHistory inserts one entry. ID and Timestamp are filled in when
// the caller left them zero.
func (db *DB) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = xid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, term, timestamp, results_count)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Term,
		toUnix(entry.Timestamp),
		entry.ResultsCount,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending history for user %d: %w", entry.UserID, err)
	}
	return nil
}

// ListHistory returns the user's entries, newest first.
func (db *DB) ListHistory(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.HistoryEntry, error) {
	limit, offset := clampList(opts, defaultHistoryPage)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, term, timestamp, results_count
		 FROM search_history
		 WHERE user_id = ?
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e  model.HistoryEntry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Term, &ts, &e.ResultsCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning history entry: %w", err)
		}
		e.Timestamp = fromUnix(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating history: %w", err)
	}
	return entries, nil
}

func (db *DB) CountHistory(ctx context.Context, userID int64) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_history WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting history: %w", err)
	}
	return n, nil
}

// TopTermsForUser groups the user's history by term, most frequent first.
// Equal counts are ordered by term so results are deterministic.
func (db *DB) TopTermsForUser(ctx context.Context, userID int64, limit int) ([]model.TermCount, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT term, COUNT(*) AS cnt
		 FROM search_history
		 WHERE user_id = ?
		 GROUP BY term
		 ORDER BY cnt DESC, term ASC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: top terms for user %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]model.TermCount, 0, limit)
	for rows.Next() {
		var tc model.TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning term count: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating term counts: %w", err)
	}
	return out, nil
}

func (db *DB) RecentForUser(ctx context.Context, userID int64, limit int) ([]model.RecentSearch, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT term, timestamp
		 FROM search_history
		 WHERE user_id = ?
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent searches for user %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]model.RecentSearch, 0, limit)
	for rows.Next() {
		var (
			rs model.RecentSearch
			ts int64
		)
		if err := rows.Scan(&rs.Term, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recent search: %w", err)
		}
		rs.Timestamp = fromUnix(ts)
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recent searches: %w", err)
	}
	return out, nil
}

// TopTermsGlobal builds the cross-user leaderboard: occurrences per term,
// distinct users per term, and the latest time the term was searched.
// Ties on count are broken by term, ascending.
func (db *DB) TopTermsGlobal(ctx context.Context, limit int) ([]model.GlobalTermStat, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT term,
		        COUNT(*)                AS cnt,
		        COUNT(DISTINCT user_id) AS users,
		        MAX(timestamp)          AS last
		 FROM search_history
		 GROUP BY term
		 ORDER BY cnt DESC, term ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: global top terms: %w", err)
	}
	defer rows.Close()

	out := make([]model.GlobalTermStat, 0, limit)
	for rows.Next() {
		var (
			s    model.GlobalTermStat
			last int64
		)
		if err := rows.Scan(&s.Term, &s.Count, &s.UserCount, &last); err != nil {
			return nil, fmt.Errorf("sqlite: scanning global term: %w", err)
		}
		s.LastSearched = fromUnix(last)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating global terms: %w", err)
	}
	return out, nil
}
