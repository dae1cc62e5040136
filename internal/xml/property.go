package xml

import "github.com/beevik/etree"

// Property represents a generic WebDAV property tree node. A node has a
// namespace URI, a local name, optional text content and ordered child
// nodes, mirroring XML element content.
type Property struct {
	Space       string
	Local       string
	TextContent string
	Children    []Property
}

// ToElement converts a Property to an etree.Element
func (p *Property) ToElement() *etree.Element {
	elem := etree.NewElement(p.Local)
	if p.Space != "" {
		elem.Space = p.Space
	}
	if p.TextContent != "" {
		elem.SetText(p.TextContent)
	}
	for i := range p.Children {
		elem.AddChild(p.Children[i].ToElement())
	}
	return elem
}

// FromElement populates a Property from an etree.Element
func (p *Property) FromElement(elem *etree.Element) {
	p.Local = elem.Tag
	p.Space = namespaceOf(elem)
	p.Children = nil
	p.TextContent = ""

	children := elem.ChildElements()
	if len(children) == 0 {
		p.TextContent = elem.Text()
		return
	}
	for _, child := range children {
		var cp Property
		cp.FromElement(child)
		p.Children = append(p.Children, cp)
	}
}

// Clone returns a deep copy of the property tree.
func (p *Property) Clone() Property {
	out := Property{
		Space:       p.Space,
		Local:       p.Local,
		TextContent: p.TextContent,
	}
	for i := range p.Children {
		out.Children = append(out.Children, p.Children[i].Clone())
	}
	return out
}

// Equal reports structural equality of two property trees.
func (p *Property) Equal(other *Property) bool {
	if p.Space != other.Space || p.Local != other.Local || p.TextContent != other.TextContent {
		return false
	}
	if len(p.Children) != len(other.Children) {
		return false
	}
	for i := range p.Children {
		if !p.Children[i].Equal(&other.Children[i]) {
			return false
		}
	}
	return true
}

// DropValues returns a copy of the tree with every text payload removed,
// keeping only the element structure. Used to answer propname requests.
func (p *Property) DropValues() Property {
	out := Property{Space: p.Space, Local: p.Local}
	for i := range p.Children {
		out.Children = append(out.Children, p.Children[i].DropValues())
	}
	return out
}

// RemoveSubtree removes the first subtree whose local name matches,
// searching depth-first. It returns whether a match was removed; when the
// root itself matches, removed is true and the returned pointer is nil.
func (p *Property) RemoveSubtree(local string) (*Property, bool) {
	if p.Local == local {
		return nil, true
	}
	for i := range p.Children {
		child, removed := p.Children[i].RemoveSubtree(local)
		if !removed {
			continue
		}
		out := p.Clone()
		if child == nil {
			out.Children = append(out.Children[:i], out.Children[i+1:]...)
		} else {
			out.Children[i] = *child
		}
		return &out, true
	}
	return p, false
}

// namespaceOf resolves the namespace URI of an element, falling back to
// the raw prefix when no declaration is in scope.
func namespaceOf(elem *etree.Element) string {
	if uri := elem.NamespaceURI(); uri != "" {
		return uri
	}
	return elem.Space
}
