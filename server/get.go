package server

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strconv"

	"github.com/davkit/davkit/server/vfs"
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head><title>Index of {{.Path}}</title></head>
<body>
<h1>Index of {{.Path}}</h1>
<table>
<tr><th>Name</th><th>Type</th><th>Last modified</th></tr>
{{range .Entries}}<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Type}}</td><td>{{.LastModified}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type listingEntry struct {
	Href         string
	Name         string
	Type         string
	LastModified string
}

type listingData struct {
	Path    string
	Entries []listingEntry
}

// renderListing builds the HTML table for a collection: one row per
// child with name, type and last-modified. Row order follows the
// backend's listing order, so repeated renders are byte-stable and the
// directory etag derived from them is meaningful.
func (h *Handler) renderListing(ctx context.Context, dir vfs.Path) ([]byte, error) {
	children, err := h.fs.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	data := listingData{Path: dir.String()}
	for _, child := range children {
		name, err := child.Path.Basename()
		if err != nil {
			continue
		}
		kind := "file"
		if child.Path.IsDir() {
			kind = "directory"
		}
		modified, err := h.lastModifiedOf(ctx, child.Path)
		if err != nil {
			modified = child.ModTime.UTC().Format(http.TimeFormat)
		}
		data.Entries = append(data.Entries, listingEntry{
			Href:         h.href(child.Path),
			Name:         name,
			Type:         kind,
			LastModified: modified,
		})
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, res Resource) {
	contentType, body, err := res.Read(r.Context())
	if err != nil {
		h.logger.Warn("get failed",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, "Not Found", httpStatusOf(err))
		return
	}

	w.Header().Set(headerContentType, contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if etag, err := res.ETag(r.Context()); err == nil {
		w.Header().Set(headerETag, etag)
	}
	if modified, err := res.LastModified(r.Context()); err == nil {
		w.Header().Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
	}

	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(body)
	}
}
