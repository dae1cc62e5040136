package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/davkit/davkit/server/vfs"
)

// checkAuth verifies Basic credentials against the principal record's
// password and salt properties. The stored password is
// hex(sha256(salt || password)).
func (h *Handler) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	_, password, ok := r.BasicAuth()
	if !ok {
		h.challenge(w)
		return false
	}

	rec, err := h.fs.PropertyMap(r.Context(), h.principal)
	if err != nil {
		h.logger.Error("failed to read principal record",
			"principal", h.principal.String(),
			"error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	stored, ok := rec.GetDAV(vfs.PropPassword)
	if !ok {
		h.logger.Error("principal record has no password property",
			"principal", h.principal.String())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	salt, ok := rec.GetDAV(vfs.PropSalt)
	if !ok {
		h.logger.Error("principal record has no salt property",
			"principal", h.principal.String())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}

	sum := sha256.Sum256([]byte(salt.TextContent + password))
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(stored.TextContent)) != 1 {
		h.logger.Warn("authentication failed", "remote_addr", r.RemoteAddr)
		h.challenge(w)
		return false
	}
	return true
}

func (h *Handler) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", h.realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// HashPassword derives the stored password property value from a salt
// and a cleartext password.
func HashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}
