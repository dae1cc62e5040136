package xml

import (
	"strings"
	"testing"
)

func TestMultistatusResponse_ToXML(t *testing.T) {
	ms := MultistatusResponse{
		Responses: []Response{
			{
				Href: "/cal/",
				PropStats: []PropStat{
					{
						Props: []Property{
							{
								Space: DAV,
								Local: "resourcetype",
								Children: []Property{
									{Space: DAV, Local: "collection"},
								},
							},
							{Space: DAV, Local: "displayname", TextContent: "cal"},
						},
						Status: StatusOK,
					},
					{
						Props:  []Property{{Space: CalendarServer, Local: "getctag"}},
						Status: StatusNotFound,
					},
				},
			},
			{
				Href:   "/cal/missing.ics",
				Status: StatusNotFound,
			},
		},
	}

	out, err := ms.ToXML().WriteToString()
	if err != nil {
		t.Fatalf("WriteToString() error = %v", err)
	}

	for _, want := range []string{
		`<D:multistatus`,
		`xmlns:D="DAV:"`,
		`<D:href>/cal/</D:href>`,
		`<D:collection/>`,
		`<D:displayname>cal</D:displayname>`,
		`<CS:getctag/>`,
		`<D:status>HTTP/1.1 404 Not Found</D:status>`,
		`<D:status>HTTP/1.1 200 OK</D:status>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMultistatusResponse_RoundTrip(t *testing.T) {
	ms := MultistatusResponse{
		Responses: []Response{
			{
				Href: "/cal/a.ics",
				PropStats: []PropStat{
					{
						Props:  []Property{{Space: DAV, Local: "getetag", TextContent: `"abc"`}},
						Status: StatusOK,
					},
				},
			},
		},
	}

	out, err := ms.ToXML().WriteToString()
	if err != nil {
		t.Fatalf("WriteToString() error = %v", err)
	}

	var got MultistatusResponse
	if err := got.Parse(parseDoc(t, out)); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got.Responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(got.Responses))
	}
	props := got.Responses[0].PropStats[0].Props
	if len(props) != 1 || props[0].Local != "getetag" || props[0].Space != DAV || props[0].TextContent != `"abc"` {
		t.Errorf("unexpected parsed props: %+v", props)
	}
}

func TestError_ToXML(t *testing.T) {
	e := Error{Namespace: DAV, Tag: "propfind-finite-depth"}
	out, err := e.ToXML().WriteToString()
	if err != nil {
		t.Fatalf("WriteToString() error = %v", err)
	}
	if !strings.Contains(out, "propfind-finite-depth") {
		t.Errorf("error body missing condition tag:\n%s", out)
	}
}
