package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/davkit/davkit/server/storage"
	"github.com/davkit/davkit/server/vfs"
)

const (
	headerContentType = "Content-Type"
	headerETag        = "ETag"
	headerDepth       = "Depth"

	mimeTypeXML = "application/xml; charset=utf-8"
)

// Options configures a Handler.
type Options struct {
	// Prefix is the URL prefix the handler is mounted under, e.g.
	// "/dav/". Hrefs in multistatus bodies are prefix-relative.
	Prefix string
	// Logger receives structured request logs; defaults to discard.
	Logger *slog.Logger
	// Codec parses and re-serializes calendar bodies on PUT; defaults
	// to the go-ical codec.
	Codec Codec
	// Realm is sent in Basic auth challenges.
	Realm string
	// Principal, when set, enables Basic authentication against the
	// password/salt properties of that collection's record.
	Principal string
}

// Handler answers WebDAV/CalDAV methods against a virtual filesystem.
// It implements http.Handler and doubles as the dispatcher over the
// Resource capability set.
type Handler struct {
	fs        *vfs.FS
	prefix    string
	logger    *slog.Logger
	codec     Codec
	realm     string
	principal vfs.Path
	withAuth  bool
}

// NewHandler creates a Handler over fs.
func NewHandler(fs *vfs.FS, opts Options) *Handler {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	codec := opts.Codec
	if codec.Parse == nil || codec.Format == nil {
		codec = DefaultCodec()
	}
	realm := opts.Realm
	if realm == "" {
		realm = "davkit"
	}

	return &Handler{
		fs:        fs,
		prefix:    prefix,
		logger:    logger,
		codec:     codec,
		realm:     realm,
		principal: vfs.ParsePath(opts.Principal).AsDir(),
		withAuth:  opts.Principal != "",
	}
}

// ServeHTTP routes the request to the matching method handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("received request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	if h.withAuth && !h.checkAuth(w, r) {
		return
	}

	res := h.Resource(h.resolvePath(r))
	res.Finish(w.Header())

	switch r.Method {
	case "OPTIONS":
		w.Header().Set("Allow", strings.Join(res.AllowedMethods(), ", "))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		h.handleGet(w, r, res)
	case http.MethodPut:
		h.handlePut(w, r, res)
	case http.MethodDelete:
		h.handleDelete(w, r, res)
	case "MKCOL":
		h.handleMkcol(w, r)
	case "PROPFIND", "PROPPATCH":
		if !res.PropMethod(r.Method) {
			w.Header().Set("Allow", strings.Join(res.AllowedMethods(), ", "))
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Method == "PROPFIND" {
			h.handlePropfind(w, r)
		} else {
			h.handleProppatch(w, r)
		}
	default:
		h.logger.Warn("unsupported method",
			"method", r.Method,
			"path", r.URL.Path)
		w.Header().Set("Allow", strings.Join(res.AllowedMethods(), ", "))
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// resolvePath maps the request URL onto a logical path. The trailing
// slash marks directories, but an existing resource's stored type wins
// over the spelling in the URL.
func (h *Handler) resolvePath(r *http.Request) vfs.Path {
	rel := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(h.prefix, "/"))
	p := vfs.ParsePath(rel)
	if p.IsRoot() {
		return p
	}
	if info, err := h.fs.Stat(r.Context(), p); err == nil {
		if info.IsDir {
			return p.AsDir()
		}
		if f, err := p.AsFile(); err == nil {
			return f
		}
	}
	return p
}

// href renders the prefix-relative address of a path for multistatus
// bodies.
func (h *Handler) href(p vfs.Path) string {
	return strings.TrimSuffix(h.prefix, "/") + p.String()
}

func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request) {
	p := vfs.ParsePath(strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(h.prefix, "/"))).AsDir()

	if _, err := h.fs.Stat(r.Context(), p); err == nil {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("mkcol stat failed", "path", p.String(), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.fs.MkdirAll(r.Context(), p); err != nil {
		h.logger.Error("mkcol failed", "path", p.String(), "error", err)
		http.Error(w, "Failed to create collection", httpStatusOf(err))
		return
	}
	h.logger.Info("collection created", "path", p.String())
	w.WriteHeader(http.StatusCreated)
}

// lastModifiedOf is a small helper shared by GET and the listing
// renderer.
func (h *Handler) lastModifiedOf(ctx context.Context, p vfs.Path) (string, error) {
	rec, err := h.fs.PropertyMap(ctx, p)
	if err != nil {
		return "", err
	}
	t, err := rec.LastModified()
	if err != nil {
		return "", err
	}
	return t.UTC().Format(http.TimeFormat), nil
}
