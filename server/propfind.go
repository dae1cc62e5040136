package server

import (
	"context"
	"net/http"

	"github.com/beevik/etree"
	"github.com/davkit/davkit/internal/xml"
	"github.com/davkit/davkit/server/vfs"
	"github.com/samber/mo"
)

// depth models the PROPFIND Depth header. An absent header means
// infinity per RFC 4918.
type depth int

const (
	depthZero depth = iota
	depthOne
	depthInfinity
	depthInvalid
)

func parseDepth(header string) depth {
	switch header {
	case "0":
		return depthZero
	case "1":
		return depthOne
	case "", "infinity":
		return depthInfinity
	default:
		return depthInvalid
	}
}

func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request) {
	switch parseDepth(r.Header.Get(headerDepth)) {
	case depthInvalid:
		http.Error(w, "Bad Depth header", http.StatusBadRequest)
		return
	case depthInfinity:
		// Unbounded recursive property queries are rejected outright,
		// for every path, always.
		h.logger.Warn("rejecting depth infinity propfind", "path", r.URL.Path)
		h.writeErrorBody(w, http.StatusForbidden, &xml.Error{
			Namespace: xml.DAV,
			Tag:       "propfind-finite-depth",
		})
		return
	}
	// Depth 0 and 1 are intentionally not distinguished: both enumerate
	// the target and, for a collection, its immediate children.

	req, ok := h.parsePropfindBody(w, r)
	if !ok {
		return
	}

	target := h.resolvePath(r)
	scope := []vfs.Path{target}
	if target.IsDir() {
		children, err := h.fs.List(r.Context(), target)
		if err != nil {
			h.logger.Warn("propfind target listing failed",
				"path", target.String(),
				"error", err)
			http.Error(w, "Not Found", httpStatusOf(err))
			return
		}
		for _, child := range children {
			scope = append(scope, child.Path)
		}
	}

	ms := xml.MultistatusResponse{}
	for _, p := range scope {
		ms.Responses = append(ms.Responses, h.propfindResponse(r.Context(), p, req))
	}

	h.writeMultistatus(w, &ms)
}

// parsePropfindBody reads and parses the request body. An empty body
// means allprop; a body that matches none of the three known shapes is a
// bad request.
func (h *Handler) parsePropfindBody(w http.ResponseWriter, r *http.Request) (*xml.PropfindRequest, bool) {
	var req xml.PropfindRequest

	doc := etree.NewDocument()
	n, err := doc.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if n == 0 || doc.Root() == nil {
		req.AllProp = true
		return &req, true
	}
	if err := req.Parse(doc); err != nil {
		h.logger.Warn("malformed propfind body",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// propfindResponse builds the response element for a single resource.
// Resources whose property data is unreadable become a 404 response
// inside the multistatus instead of failing the batch.
func (h *Handler) propfindResponse(ctx context.Context, p vfs.Path, req *xml.PropfindRequest) xml.Response {
	rec, err := h.fs.PropertyMap(ctx, p)
	if err != nil {
		h.logger.Warn("propfind resource skipped",
			"path", p.String(),
			"error", err)
		return xml.Response{Href: h.href(p), Status: xml.StatusNotFound}
	}

	resp := xml.Response{Href: h.href(p)}

	if req.PropNames {
		resp.PropStats = []xml.PropStat{{
			Props:  withResourceType(rec.DropValues(), p).Properties(),
			Status: xml.StatusOK,
		}}
		return resp
	}

	// Resolve each requested key to a found/not-found result, then split
	// the map into one propstat per status.
	resolved := map[xml.PropKey]mo.Result[xml.Property]{}
	order := []xml.PropKey{}

	record := withResourceType(rec, p)
	if req.AllProp {
		for _, key := range record.Keys() {
			prop, _ := record.Get(key)
			resolved[key] = mo.Ok(prop)
			order = append(order, key)
		}
		for _, key := range req.Include {
			if _, ok := resolved[key]; ok {
				continue
			}
			resolved[key] = mo.Err[xml.Property](xml.ErrPropNotFound)
			order = append(order, key)
		}
	} else {
		for _, key := range req.Prop {
			if prop, ok := record.Get(key); ok {
				resolved[key] = mo.Ok(prop)
			} else {
				resolved[key] = mo.Err[xml.Property](xml.ErrPropNotFound)
			}
			order = append(order, key)
		}
	}

	var found, missing []xml.Property
	for _, key := range order {
		result := resolved[key]
		if prop, err := result.Get(); err == nil {
			found = append(found, prop)
		} else {
			missing = append(missing, xml.Property{Space: key.Space, Local: key.Local})
		}
	}

	if len(found) > 0 {
		resp.PropStats = append(resp.PropStats, xml.PropStat{Props: found, Status: xml.StatusOK})
	}
	if len(missing) > 0 {
		resp.PropStats = append(resp.PropStats, xml.PropStat{Props: missing, Status: xml.StatusNotFound})
	}
	if len(resp.PropStats) == 0 {
		resp.PropStats = []xml.PropStat{{Status: xml.StatusOK}}
	}
	return resp
}

// withResourceType overlays the live resourcetype onto a record copy;
// the type is derived from the path, never persisted.
func withResourceType(rec *vfs.Record, p vfs.Path) *vfs.Record {
	out := rec.Clone()
	prop := xml.Property{Space: xml.DAV, Local: xml.TagResourcetype}
	if p.IsDir() {
		prop.Children = []xml.Property{{Space: xml.DAV, Local: xml.TagCollection}}
	}
	out.Set(prop)
	return out
}

func (h *Handler) writeMultistatus(w http.ResponseWriter, ms *xml.MultistatusResponse) {
	w.Header().Set(headerContentType, mimeTypeXML)
	w.WriteHeader(http.StatusMultiStatus)
	if _, err := ms.ToXML().WriteTo(w); err != nil {
		h.logger.Error("failed to write multistatus body", "error", err)
	}
}

func (h *Handler) writeErrorBody(w http.ResponseWriter, status int, e *xml.Error) {
	w.Header().Set(headerContentType, mimeTypeXML)
	w.WriteHeader(status)
	if _, err := e.ToXML().WriteTo(w); err != nil {
		h.logger.Error("failed to write error body", "error", err)
	}
}
