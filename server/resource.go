package server

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davkit/davkit/server/storage"
	"github.com/davkit/davkit/server/vfs"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is assumed for file content whose record carries no
// usable getcontenttype.
const DefaultContentType = "text/calendar"

// ErrCodec marks calendar parse/serialize failures; writes carrying a
// body the codec rejects are never stored.
var ErrCodec = errors.New("calendar codec failure")

// Resource is the per-path capability set a generic REST dispatcher
// consumes: existence, allowed methods, content read/write, delete,
// property-method dispatch, etag and last-modified, plus the finishing
// hook stamping the protocol compliance header. The dispatcher holds
// this interface value, never the concrete type.
type Resource interface {
	Exists(ctx context.Context) bool
	AllowedMethods() []string
	Read(ctx context.Context) (contentType string, body []byte, err error)
	Write(ctx context.Context, contentType string, body []byte) (etag string, created bool, err error)
	Delete(ctx context.Context) error
	PropMethod(method string) bool
	ETag(ctx context.Context) (string, error)
	LastModified(ctx context.Context) (time.Time, error)
	Finish(header http.Header)
}

type davResource struct {
	h    *Handler
	path vfs.Path
}

// Resource returns the capability view of the resource at path.
func (h *Handler) Resource(path vfs.Path) Resource {
	return &davResource{h: h, path: path}
}

func (r *davResource) Exists(ctx context.Context) bool {
	_, err := r.h.fs.Stat(ctx, r.path)
	return err == nil
}

func (r *davResource) AllowedMethods() []string {
	if r.path.IsDir() {
		return []string{"OPTIONS", "HEAD", "GET", "DELETE", "MKCOL", "PROPFIND", "PROPPATCH"}
	}
	return []string{"OPTIONS", "HEAD", "GET", "PUT", "DELETE", "PROPFIND", "PROPPATCH"}
}

func (r *davResource) PropMethod(method string) bool {
	return method == "PROPFIND" || method == "PROPPATCH"
}

// Finish stamps the WebDAV class-1 compliance header.
func (r *davResource) Finish(header http.Header) {
	header.Set("DAV", "1")
}

// Read returns the negotiated content type and body. Directories render
// as an HTML listing; files return raw bytes typed by their record.
func (r *davResource) Read(ctx context.Context) (string, []byte, error) {
	if r.path.IsDir() {
		body, err := r.h.renderListing(ctx, r.path)
		if err != nil {
			return "", nil, err
		}
		return "text/html; charset=utf-8", body, nil
	}

	content, rec, err := r.h.fs.ReadFile(ctx, r.path)
	if err != nil {
		return "", nil, err
	}
	return contentTypeOf(rec, content), content, nil
}

// Write parses the body through the calendar codec, re-serializes it,
// materializes missing ancestors and persists content plus derived
// properties. A parse failure rejects the write.
func (r *davResource) Write(ctx context.Context, contentType string, body []byte) (string, bool, error) {
	cal, err := r.h.codec.Parse(body)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	normalized, err := r.h.codec.Format(cal)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrCodec, err)
	}

	created := !r.Exists(ctx)
	if err := r.h.fs.MkdirAll(ctx, r.path.Parent()); err != nil {
		return "", false, err
	}
	if contentType == "" {
		contentType = DefaultContentType
	}
	rec := vfs.NewFileRecord(contentType, len(normalized), time.Now())
	if err := r.h.fs.WriteFile(ctx, r.path, normalized, rec); err != nil {
		return "", false, err
	}
	return etagOf(normalized), created, nil
}

func (r *davResource) Delete(ctx context.Context) error {
	return r.h.fs.Destroy(ctx, r.path, false)
}

// ETag derives the entity tag from content: a hash of the raw bytes for
// files, of the rendered listing for directories. Never cached.
func (r *davResource) ETag(ctx context.Context) (string, error) {
	if r.path.IsDir() {
		body, err := r.h.renderListing(ctx, r.path)
		if err != nil {
			return "", err
		}
		return etagOf(body), nil
	}
	raw, _, err := r.h.fs.ReadFile(ctx, r.path)
	if err != nil {
		return "", err
	}
	return etagOf(raw), nil
}

// LastModified reads the record's getlastmodified, synthesized for
// directories when absent.
func (r *davResource) LastModified(ctx context.Context) (time.Time, error) {
	rec, err := r.h.fs.PropertyMap(ctx, r.path)
	if err != nil {
		return time.Time{}, err
	}
	return rec.LastModified()
}

func etagOf(data []byte) string {
	hash := sha1.Sum(data)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

// contentTypeOf picks the response content type: the record's
// getcontenttype when usable, a sniff of the bytes next, and the
// calendar default last.
func contentTypeOf(rec *vfs.Record, content []byte) string {
	if p, ok := rec.GetDAV(vfs.PropGetContentType); ok && p.TextContent != "" {
		return p.TextContent
	}
	if mt := mimetype.Detect(content); !mt.Is("application/octet-stream") {
		return mt.String()
	}
	return DefaultContentType
}

func httpStatusOf(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrIsDirectory),
		errors.Is(err, storage.ErrNotDirectory),
		errors.Is(err, storage.ErrNotEmpty):
		return http.StatusConflict
	case errors.Is(err, vfs.ErrMalformedRecord):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
