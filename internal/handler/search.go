package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/service"
)

// SearchHandler serves image search, the caller's history and stats, and
// the public leaderboard.
//
// HANDLERS STAY THIN:
// Each method does the same four things: read the user from context,
// decode the input, call one service method, write JSON. Validation,
// fallbacks and degraded reads are service decisions, so they are tested
// once in internal/service instead of once per transport.
//
// DEGRADED RESPONSES:
// When the database is down, history, stats and the leaderboard still
// answer 200 with empty data and a "warning" field. Clients show the
// warning instead of an error page.
type SearchHandler struct {
	search  *service.SearchService
	history *service.HistoryService
	stats   *service.StatsService
	logger  *slog.Logger
}

func NewSearchHandler(
	search *service.SearchService,
	history *service.HistoryService,
	stats *service.StatsService,
	logger *slog.Logger,
) *SearchHandler {
	return &SearchHandler{
		search:  search,
		history: history,
		stats:   stats,
		logger:  logger,
	}
}

type searchRequest struct {
	Term string `json:"term"`
}

// HandleSearch runs a search for the signed-in user.
//
// HTTP: POST /api/search
// REQUEST BODY: {"term": "mountains"}
//
// RESPONSE FORMAT:
//
//	{"term":"mountains","results":[...],"total":1200,"source":"unsplash"}
//
// source is "placeholder" when Unsplash is not configured or failed; after
// a failure a warning says so. History is recorded in the background, so
// a slow or broken database never delays or fails the search.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.search.Search(r.Context(), user.ID, req.Term)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHistory lists the caller's past searches, newest first.
//
// HTTP: GET /api/search/history?limit=20&skip=0
func (h *SearchHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, skip, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.history.List(r.Context(), user.ID, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HTTP: GET /api/search/stats
func (h *SearchHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.UserStats(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleTopSearches returns the cross-user leaderboard. No session needed.
//
// HTTP: GET /api/top-searches?limit=5
func (h *SearchHandler) HandleTopSearches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	top, err := h.stats.TopSearches(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

type imagesResponse struct {
	Query   string               `json:"query"`
	Results []model.SearchResult `json:"results"`
}

// HandleImages returns placeholder images without touching the provider or
// recording history. The landing page uses it before sign-in.
//
// HTTP: GET /api/images?q=forest
func (h *SearchHandler) HandleImages(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		q = "random"
	}
	writeJSON(w, http.StatusOK, imagesResponse{Query: q, Results: service.Placeholder(q)})
}
