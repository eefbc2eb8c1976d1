package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vokorun/runclub/internal/access"
	"github.com/vokorun/runclub/internal/blob"
	"github.com/vokorun/runclub/internal/service"
)

// UploadHandler accepts event images.
type UploadHandler struct {
	store *blob.Store
	log   *slog.Logger
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(store *blob.Store, log *slog.Logger) *UploadHandler {
	return &UploadHandler{store: store, log: log}
}

// Upload handles POST /api/uploads
// Expects a multipart form with the image in "file" and returns its public URL.
// Uploading is part of creating events and is gated the same way.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const action = string(access.CreateEvent)

	snap := SnapshotFrom(r.Context())
	if !snap.SignedIn() {
		respondError(w, r, h.log, action, service.ErrAuthRequired)
		return
	}
	if !access.CanAccess(snap.Role, access.CreateEvent).Allowed() {
		respondError(w, r, h.log, action, &service.PermissionError{Action: access.CreateEvent})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxSize+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, h.log, action, blob.ErrTooLarge)
			return
		}
		badRequest(w, action, "Please choose an image to upload")
		return
	}
	defer file.Close()

	url, err := h.store.Upload(r.Context(), file)
	if err != nil {
		respondError(w, r, h.log, action, err)
		return
	}
	h.log.Info("image uploaded", "url", url, "user_id", snap.Identity.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
