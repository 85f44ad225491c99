package model

import "time"

// HistoryEntry records one search. Entries are append-only.
type HistoryEntry struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"userId"`
	Term         string    `json:"term"`
	Timestamp    time.Time `json:"timestamp"`
	ResultsCount int       `json:"resultsCount"`
}

// TermCount is one row of a per-user frequency table.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// RecentSearch is the trimmed-down history row shown in user stats.
type RecentSearch struct {
	Term      string    `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// UserStats aggregates one user's search history.
type UserStats struct {
	TotalSearches  int            `json:"totalSearches"`
	TopSearches    []TermCount    `json:"topSearches"`
	RecentSearches []RecentSearch `json:"recentSearches"`
	Warning        string         `json:"warning,omitempty"`
}

// GlobalTermStat is one row of the cross-user leaderboard.
// UserCount is the number of distinct users who searched Term.
type GlobalTermStat struct {
	Term         string    `json:"term"`
	Count        int       `json:"count"`
	UserCount    int       `json:"userCount"`
	LastSearched time.Time `json:"lastSearched"`
}

// HistoryPage is one page of a user's search history, newest first.
type HistoryPage struct {
	History []HistoryEntry `json:"history"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Skip    int            `json:"skip"`
	Warning string         `json:"warning,omitempty"`
}

// TopSearches is the public leaderboard response.
type TopSearches struct {
	TopSearches []GlobalTermStat `json:"topSearches"`
	Total       int              `json:"total"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Warning     string           `json:"warning,omitempty"`
}
