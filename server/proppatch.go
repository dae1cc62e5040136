package server

import (
	"net/http"

	"github.com/beevik/etree"
	"github.com/davkit/davkit/internal/xml"
)

func (h *Handler) handleProppatch(w http.ResponseWriter, r *http.Request) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r.Body); err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req xml.ProppatchRequest
	if err := req.Parse(doc); err != nil {
		h.logger.Warn("malformed proppatch body",
			"path", r.URL.Path,
			"error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target := h.resolvePath(r)
	href := h.href(target)

	// Touched property names are echoed in the propstat, values dropped,
	// one status covering the whole ordered batch.
	touched := make([]xml.Property, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.Set != nil {
			touched = append(touched, xml.Property{Space: u.Set.Space, Local: u.Set.Local})
		} else {
			touched = append(touched, xml.Property{Space: xml.DAV, Local: u.Remove})
		}
	}

	// A record only exists for a stored resource; touching properties of
	// a missing one is a hard failure, never an implicit create.
	if _, err := h.fs.Stat(r.Context(), target); err != nil {
		h.logger.Warn("proppatch on missing resource",
			"path", target.String(),
			"error", err)
		h.writeMultistatus(w, &xml.MultistatusResponse{Responses: []xml.Response{{
			Href:      href,
			PropStats: []xml.PropStat{{Props: touched, Status: xml.StatusNotFound}},
		}}})
		return
	}

	rec, err := h.fs.StoredPropertyMap(r.Context(), target)
	if err != nil {
		// No property record is a hard failure for this resource.
		h.logger.Warn("proppatch on resource without record",
			"path", target.String(),
			"error", err)
		h.writeMultistatus(w, &xml.MultistatusResponse{Responses: []xml.Response{{
			Href:      href,
			PropStats: []xml.PropStat{{Props: touched, Status: xml.StatusNotFound}},
		}}})
		return
	}

	updated := rec.Apply(req.Updates)
	if err := h.fs.WritePropertyMap(r.Context(), target, updated); err != nil {
		h.logger.Error("proppatch persist failed",
			"path", target.String(),
			"error", err)
		h.writeMultistatus(w, &xml.MultistatusResponse{Responses: []xml.Response{{
			Href:      href,
			PropStats: []xml.PropStat{{Props: touched, Status: xml.StatusFailed}},
		}}})
		return
	}

	h.logger.Info("proppatch applied",
		"path", target.String(),
		"updates", len(req.Updates))
	h.writeMultistatus(w, &xml.MultistatusResponse{Responses: []xml.Response{{
		Href:      href,
		PropStats: []xml.PropStat{{Props: touched, Status: xml.StatusOK}},
	}}})
}
