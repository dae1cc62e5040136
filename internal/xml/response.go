package xml

import (
	"fmt"

	"github.com/beevik/etree"
)

// MultistatusResponse represents a multistatus response
type MultistatusResponse struct {
	Responses []Response
}

// Response represents a single response within a multistatus
type Response struct {
	Href      string
	PropStats []PropStat
	Error     *Error
	Status    string
}

// PropStat represents property status in a response
type PropStat struct {
	Props  []Property
	Status string
}

// Status line strings used in propstat elements.
const (
	StatusOK        = "HTTP/1.1 200 OK"
	StatusNotFound  = "HTTP/1.1 404 Not Found"
	StatusForbidden = "HTTP/1.1 403 Forbidden"
	StatusFailed    = "HTTP/1.1 500 Internal Server Error"
)

// ToXML converts a MultistatusResponse to an XML document
func (m *MultistatusResponse) ToXML() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(TagMultistatus)
	root.Space = "D"
	AddNamespaces(doc)

	for _, resp := range m.Responses {
		response := root.CreateElement(TagResponse)
		response.Space = "D"
		href := response.CreateElement(TagHref)
		href.Space = "D"
		href.SetText(resp.Href)

		if resp.Error != nil {
			response.AddChild(resp.Error.ToElement())
			continue
		}
		if resp.Status != "" {
			status := response.CreateElement(TagStatus)
			status.Space = "D"
			status.SetText(resp.Status)
			continue
		}
		for _, propstat := range resp.PropStats {
			ps := response.CreateElement(TagPropstat)
			ps.Space = "D"
			prop := ps.CreateElement(TagProp)
			prop.Space = "D"
			for i := range propstat.Props {
				prop.AddChild(qualify(propstat.Props[i].ToElement()))
			}
			status := ps.CreateElement(TagStatus)
			status.Space = "D"
			status.SetText(propstat.Status)
		}
	}

	return doc
}

// Parse parses a multistatus response from an XML document
func (m *MultistatusResponse) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return fmt.Errorf("empty document")
	}

	root := doc.Root()
	if root.Tag != TagMultistatus {
		return fmt.Errorf("invalid root tag: %s", root.Tag)
	}

	m.Responses = nil

	for _, respElem := range root.SelectElements(TagResponse) {
		resp := Response{}

		if hrefElem := respElem.SelectElement(TagHref); hrefElem != nil {
			resp.Href = hrefElem.Text()
		}

		if errorElem := respElem.SelectElement(TagError); errorElem != nil {
			if children := errorElem.ChildElements(); len(children) > 0 {
				resp.Error = &Error{
					Tag:       children[0].Tag,
					Namespace: namespaceOf(children[0]),
					Message:   children[0].Text(),
				}
			}
		} else {
			for _, propstatElem := range respElem.SelectElements(TagPropstat) {
				propstat := PropStat{}
				if propElem := propstatElem.SelectElement(TagProp); propElem != nil {
					for _, p := range propElem.ChildElements() {
						var property Property
						property.FromElement(p)
						propstat.Props = append(propstat.Props, property)
					}
				}
				if statusElem := propstatElem.SelectElement(TagStatus); statusElem != nil {
					propstat.Status = statusElem.Text()
				}
				resp.PropStats = append(resp.PropStats, propstat)
			}
		}

		m.Responses = append(m.Responses, resp)
	}

	return nil
}

// Error represents a WebDAV error response body, e.g.
// <D:error><D:propfind-finite-depth/></D:error>
type Error struct {
	Namespace string
	Tag       string
	Message   string
}

// ToElement converts an Error to an etree.Element
func (e *Error) ToElement() *etree.Element {
	err := etree.NewElement(TagError)
	err.Space = "D"
	tag := etree.NewElement(e.Tag)
	tag.Space = prefixFor(e.Namespace)
	if e.Message != "" {
		tag.SetText(e.Message)
	}
	err.AddChild(tag)
	return err
}

// ToXML renders the error as a standalone response document.
func (e *Error) ToXML() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.AddChild(e.ToElement())
	AddNamespaces(doc)
	return doc
}

// qualify rewrites the raw namespace URIs left in Space fields into the
// document-level prefixes declared by AddNamespaces. Unknown namespaces
// are declared inline on the element itself.
func qualify(elem *etree.Element) *etree.Element {
	if elem.Space != "" {
		switch elem.Space {
		case DAV:
			elem.Space = "D"
		case CalDAV:
			elem.Space = "C"
		case CalendarServer:
			elem.Space = "CS"
		default:
			uri := elem.Space
			elem.Space = "x"
			elem.CreateAttr("xmlns:x", uri)
		}
	}
	for _, child := range elem.ChildElements() {
		qualify(child)
	}
	return elem
}

func prefixFor(namespace string) string {
	switch namespace {
	case CalDAV:
		return "C"
	case CalendarServer:
		return "CS"
	default:
		return "D"
	}
}
