package server

import (
	"errors"
	"net/http"

	"github.com/davkit/davkit/server/storage"
)

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, res Resource) {
	err := res.Delete(r.Context())
	switch {
	case err == nil:
		h.logger.Info("resource deleted", "path", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	default:
		h.logger.Error("delete failed",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, "Failed to delete resource", httpStatusOf(err))
	}
}
