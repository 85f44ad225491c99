package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/service"
)

// SavedImageHandler serves /api/saved-images. All routes require a session
// and only ever touch the caller's own records.
//
// OWNERSHIP:
// The user ID always comes from the session, never from the request body
// or URL. Deleting someone else's image therefore looks exactly like
// deleting one that does not exist (404), which reveals nothing.
//
// READS VS WRITES WHEN THE DATABASE IS DOWN:
// Listing answers 200 with an empty page and a warning. Saving and
// deleting answer 503: pretending a write succeeded would lose data.
type SavedImageHandler struct {
	svc    *service.SavedImageService
	logger *slog.Logger
}

func NewSavedImageHandler(svc *service.SavedImageService, logger *slog.Logger) *SavedImageHandler {
	return &SavedImageHandler{svc: svc, logger: logger}
}

type saveImageRequest struct {
	ImageID     string `json:"imageId"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	Author      string `json:"author"`
	AuthorURL   string `json:"authorUrl"`
	DownloadURL string `json:"downloadUrl"`
}

type saveImageResponse struct {
	Message string            `json:"message"`
	Image   *model.SavedImage `json:"image"`
}

// HandleCreate saves one image.
//
// HTTP: POST /api/saved-images
// RESPONSE: 201 {"message":"Image saved successfully","image":{...}}
//
//	200 {"message":"Image already saved","image":{...}} for a repeat save
func (h *SavedImageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req saveImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	img, created, err := h.svc.Save(r.Context(), user.ID, model.SavedImage{
		ImageID:     req.ImageID,
		Title:       req.Title,
		URL:         req.URL,
		Thumbnail:   req.Thumbnail,
		Author:      req.Author,
		AuthorURL:   req.AuthorURL,
		DownloadURL: req.DownloadURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, saveImageResponse{Message: "Image already saved", Image: img})
		return
	}
	writeJSON(w, http.StatusCreated, saveImageResponse{Message: "Image saved successfully", Image: img})
}

// HTTP: GET /api/saved-images?limit=50&skip=0
func (h *SavedImageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, skip, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.svc.List(r.Context(), user.ID, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleDelete removes one of the caller's saved images. Another user's id
// gets the same 404 as a missing one.
//
// HTTP: DELETE /api/saved-images/{id}
func (h *SavedImageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Image removed successfully"})
}

type batchRequest struct {
	Images []model.SearchResult `json:"images"`
}

type batchResponse struct {
	Message string `json:"message"`
	model.BatchResult
}

// HandleBatch saves several search results at once. Items use the search
// result shape, so each carries "id" rather than "imageId".
//
// HTTP: POST /api/saved-images/batch
// REQUEST BODY: {"images": [{"id","title","url",...}]}
func (h *SavedImageHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.SaveBatch(r.Context(), user.ID, req.Images)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Message: "Images processed", BatchResult: *res})
}
