package server

import (
	"net/http"
	"testing"

	"github.com/beevik/etree"
	davxml "github.com/davkit/davkit/internal/xml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseMultistatus(t *testing.T, body string) *davxml.MultistatusResponse {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(body))
	var ms davxml.MultistatusResponse
	require.NoError(t, ms.Parse(doc))
	return &ms
}

func TestPropfindDepthInfinityRejected(t *testing.T) {
	h, fs := newTestHandler(t, Options{Prefix: "/dav/"})
	seedFile(t, fs, "/cal/a.ics", testICS)

	for _, target := range []string{"/dav/", "/dav/cal/", "/dav/cal/a.ics", "/dav/no/such/path"} {
		for _, depth := range []string{"", "infinity"} {
			rec := doRequest(h, "PROPFIND", target, "", map[string]string{"Depth": depth})
			assert.Equal(t, http.StatusForbidden, rec.Code, "target %s depth %q", target, depth)
			assert.Contains(t, rec.Body.String(), "propfind-finite-depth")
		}
	}
}

func TestPropfindBadDepth(t *testing.T) {
	h, _ := newTestHandler(t, Options{Prefix: "/dav/"})
	rec := doRequest(h, "PROPFIND", "/dav/", "", map[string]string{"Depth": "2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPropfindAllpropOnCollection(t *testing.T) {
	h, fs := newTestHandler(t, Options{Prefix: "/dav/"})
	seedFile(t, fs, "/cal/a.ics", testICS)

	body := `<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:allprop/></D:propfind>`
	rec := doRequest(h, "PROPFIND", "/dav/cal/", body, map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	ms := parseMultistatus(t, rec.Body.String())
	// The collection itself plus its one child.
	require.Len(t, ms.Responses, 2)
	assert.Equal(t, "/dav/cal/", ms.Responses[0].Href)
	assert.Equal(t, "/dav/cal/a.ics", ms.Responses[1].Href)

	require.NotEmpty(t, ms.Responses[0].PropStats)
	assert.Equal(t, davxml.StatusOK, ms.Responses[0].PropStats[0].Status)

	var hasResourceType, hasCollection bool
	for _, p := range ms.Responses[0].PropStats[0].Props {
		if p.Local == "resourcetype" {
			hasResourceType = true
			for _, c := range p.Children {
				if c.Local == "collection" {
					hasCollection = true
				}
			}
		}
	}
	assert.True(t, hasResourceType)
	assert.True(t, hasCollection)
}

func TestPropfindNamedProps(t *testing.T) {
	h, fs := newTestHandler(t, Options{Prefix: "/dav/"})
	seedFile(t, fs, "/cal/a.ics", testICS)

	body := `<?xml version="1.0"?>
<D:propfind xmlns:D="DAV:">
  <D:prop><D:getcontenttype/><D:quota-used-bytes/></D:prop>
</D:propfind>`
	rec := doRequest(h, "PROPFIND", "/dav/cal/a.ics", body, map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	ms := parseMultistatus(t, rec.Body.String())
	require.Len(t, ms.Responses, 1)
	require.Len(t, ms.Responses[0].PropStats, 2)

	found := ms.Responses[0].PropStats[0]
	assert.Equal(t, davxml.StatusOK, found.Status)
	require.Len(t, found.Props, 1)
	assert.Equal(t, "getcontenttype", found.Props[0].Local)
	assert.Equal(t, "text/calendar", found.Props[0].TextContent)

	missing := ms.Responses[0].PropStats[1]
	assert.Equal(t, davxml.StatusNotFound, missing.Status)
	require.Len(t, missing.Props, 1)
	assert.Equal(t, "quota-used-bytes", missing.Props[0].Local)
}

func TestPropfindPropname(t *testing.T) {
	h, fs := newTestHandler(t, Options{Prefix: "/dav/"})
	seedFile(t, fs, "/cal/a.ics", testICS)

	body := `<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:propname/></D:propfind>`
	rec := doRequest(h, "PROPFIND", "/dav/cal/a.ics", body, map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	ms := parseMultistatus(t, rec.Body.String())
	require.Len(t, ms.Responses, 1)
	require.Len(t, ms.Responses[0].PropStats, 1)
	for _, p := range ms.Responses[0].PropStats[0].Props {
		assert.Empty(t, p.TextContent, "propname must drop values, %s carries one", p.Local)
	}
}

func TestPropfindEmptyBodyMeansAllprop(t *testing.T) {
	h, fs := newTestHandler(t, Options{Prefix: "/dav/"})
	seedFile(t, fs, "/cal/a.ics", testICS)

	rec := doRequest(h, "PROPFIND", "/dav/cal/a.ics", "", map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	ms := parseMultistatus(t, rec.Body.String())
	require.Len(t, ms.Responses, 1)
	require.NotEmpty(t, ms.Responses[0].PropStats)
	assert.Equal(t, davxml.StatusOK, ms.Responses[0].PropStats[0].Status)
}

func TestPropfindMalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, Options{Prefix: "/dav/"})

	rec := doRequest(h, "PROPFIND", "/dav/",
		`<D:unknown xmlns:D="DAV:"/>`, map[string]string{"Depth": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPropfindScenarioMkdirWritePropfind(t *testing.T) {
	h, _ := newTestHandler(t, Options{Prefix: "/dav/"})

	rec := doRequest(h, "MKCOL", "/dav/cal/", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "PUT", "/dav/cal/a.ics", testICS,
		map[string]string{"Content-Type": "text/calendar"})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:allprop/></D:propfind>`
	resp := doRequest(h, "PROPFIND", "/dav/cal/", body, map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusMultiStatus, resp.Code)

	ms := parseMultistatus(t, resp.Body.String())
	require.Len(t, ms.Responses, 2)
	assert.Equal(t, "/dav/cal/", ms.Responses[0].Href)
	assert.Equal(t, davxml.StatusOK, ms.Responses[0].PropStats[0].Status)
	assert.NotEmpty(t, ms.Responses[0].PropStats[0].Props)
}
