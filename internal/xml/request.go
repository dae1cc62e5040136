package xml

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// ErrPropNotFound marks a requested property absent from a resource's
// record; it maps to a 404 propstat, not a failed response.
var ErrPropNotFound = errors.New("property not found")

// PropKey identifies a property by namespace URI and local name.
type PropKey struct {
	Space string
	Local string
}

// PropfindRequest represents a parsed PROPFIND request body. Exactly one
// of Prop, PropNames or AllProp is set; Include only accompanies AllProp.
type PropfindRequest struct {
	Prop      []PropKey
	PropNames bool
	AllProp   bool
	Include   []PropKey
}

// Parse parses a PROPFIND request from an XML document
func (r *PropfindRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return fmt.Errorf("empty document")
	}

	root := doc.Root()
	if root.Tag != TagPropfind {
		return fmt.Errorf("invalid root tag: %s", root.Tag)
	}

	// Reset the request fields
	r.Prop = nil
	r.Include = nil
	r.PropNames = false
	r.AllProp = false

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case TagProp:
			for _, p := range child.ChildElements() {
				r.Prop = append(r.Prop, PropKey{Space: namespaceOf(p), Local: p.Tag})
			}
		case TagPropname:
			r.PropNames = true
		case TagAllprop:
			r.AllProp = true
		case TagInclude:
			for _, p := range child.ChildElements() {
				r.Include = append(r.Include, PropKey{Space: namespaceOf(p), Local: p.Tag})
			}
		}
	}

	shapes := 0
	if r.PropNames {
		shapes++
	}
	if r.AllProp {
		shapes++
	}
	if r.Prop != nil {
		shapes++
	}
	if shapes == 0 {
		return fmt.Errorf("propfind body matches none of prop, propname, allprop")
	}
	if shapes > 1 {
		return fmt.Errorf("propfind body mixes request shapes")
	}
	return nil
}

// Update is a single PROPPATCH operation: either a Set carrying the new
// property tree, or a Remove carrying the local name to drop.
type Update struct {
	Set    *Property
	Remove string
}

// ProppatchRequest represents a parsed PROPPATCH request body: an ordered
// list of set/remove operations applied left-to-right.
type ProppatchRequest struct {
	Updates []Update
}

// Parse parses a PROPPATCH request from an XML document
func (r *ProppatchRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return fmt.Errorf("empty document")
	}

	root := doc.Root()
	if root.Tag != TagPropertyUpdate {
		return fmt.Errorf("invalid root tag: %s", root.Tag)
	}

	r.Updates = nil

	for _, op := range root.ChildElements() {
		switch op.Tag {
		case TagSet:
			prop := op.SelectElement(TagProp)
			if prop == nil {
				return fmt.Errorf("set without prop element")
			}
			for _, p := range prop.ChildElements() {
				var property Property
				property.FromElement(p)
				r.Updates = append(r.Updates, Update{Set: &property})
			}
		case TagRemove:
			prop := op.SelectElement(TagProp)
			if prop == nil {
				return fmt.Errorf("remove without prop element")
			}
			for _, p := range prop.ChildElements() {
				r.Updates = append(r.Updates, Update{Remove: p.Tag})
			}
		}
	}

	if len(r.Updates) == 0 {
		return fmt.Errorf("propertyupdate carries no operations")
	}
	return nil
}
