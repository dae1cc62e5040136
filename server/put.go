package server

import (
	"errors"
	"io"
	"net/http"
)

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, res Resource) {
	if exists := res.Exists(r.Context()); exists {
		if r.Header.Get("If-None-Match") == "*" {
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
			return
		}
		if match := r.Header.Get("If-Match"); match != "" {
			etag, err := res.ETag(r.Context())
			if err != nil || match != etag {
				http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
				return
			}
		}
	} else if r.Header.Get("If-Match") != "" {
		http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read request body",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	r.Body.Close()

	etag, created, err := res.Write(r.Context(), r.Header.Get(headerContentType), body)
	if errors.Is(err, ErrCodec) {
		// Parse failures reject the write without storing anything.
		h.logger.Warn("put rejected",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, "Invalid calendar data", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("put failed",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, "Failed to store resource", httpStatusOf(err))
		return
	}

	w.Header().Set(headerETag, etag)
	if created {
		h.logger.Info("resource created", "path", r.URL.Path, "etag", etag)
		w.WriteHeader(http.StatusCreated)
	} else {
		h.logger.Info("resource updated", "path", r.URL.Path, "etag", etag)
		w.WriteHeader(http.StatusNoContent)
	}
}
