package xml

import "github.com/beevik/etree"

// Namespace definitions for WebDAV and CalDAV
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
	// CalendarServer is the Calendar Server namespace (used by some implementations)
	CalendarServer = "http://calendarserver.org/ns/"
)

// Common XML tag names used in WebDAV
const (
	TagPropfind       = "propfind"
	TagPropertyUpdate = "propertyupdate"
	TagProp           = "prop"
	TagPropname       = "propname"
	TagAllprop        = "allprop"
	TagInclude        = "include"
	TagSet            = "set"
	TagRemove         = "remove"
	TagMultistatus    = "multistatus"
	TagResponse       = "response"
	TagHref           = "href"
	TagPropstat       = "propstat"
	TagStatus         = "status"
	TagError          = "error"
	TagResourcetype   = "resourcetype"
	TagCollection     = "collection"
	TagCalendar       = "calendar"
)

// AddNamespaces adds standard WebDAV/CalDAV namespaces to the XML document
func AddNamespaces(doc *etree.Document) {
	root := doc.Root()
	if root == nil {
		return
	}
	root.CreateAttr("xmlns:D", DAV)
	root.CreateAttr("xmlns:C", CalDAV)
	root.CreateAttr("xmlns:CS", CalendarServer)
}
