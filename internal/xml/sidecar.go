package xml

import (
	"fmt"

	"github.com/beevik/etree"
)

// MarshalProp renders an ordered list of property trees as a standalone
// <D:prop> document. This is the persisted sidecar payload; the format
// must stay stable across writes because etags and round-trips depend
// on it.
func MarshalProp(props []Property) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(TagProp)
	root.Space = "D"
	AddNamespaces(doc)
	for i := range props {
		root.AddChild(qualify(props[i].ToElement()))
	}
	return doc.WriteToBytes()
}

// UnmarshalProp parses a sidecar payload produced by MarshalProp back
// into its ordered property list.
func UnmarshalProp(data []byte) ([]Property, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse sidecar payload: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != TagProp {
		return nil, fmt.Errorf("sidecar payload is not a prop document")
	}
	var props []Property
	for _, child := range root.ChildElements() {
		var p Property
		p.FromElement(child)
		props = append(props, p)
	}
	return props, nil
}
