package vfs

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/davkit/davkit/internal/xml"
	"github.com/google/uuid"
)

// SidecarSuffix is appended to a resource's last path segment to name its
// property sidecar. The literal is preserved for compatibility with
// existing stores even though the payload is schema-free.
const SidecarSuffix = ".prop.xml"

// Well-known property names used by the handlers.
const (
	PropGetLastModified  = "getlastmodified"
	PropCreationDate     = "creationdate"
	PropGetContentType   = "getcontenttype"
	PropGetContentLength = "getcontentlength"
	PropGetCTag          = "getctag"
	PropPassword         = "password"
	PropSalt             = "salt"
)

// DirContentType is the content type recorded for directories.
const DirContentType = "text/directory"

// Record is a resource's property store: an insertion-ordered mapping
// from (namespace, local name) to a property tree. Every stored resource
// has exactly one Record, persisted as its sidecar.
type Record struct {
	keys  []xml.PropKey
	props map[xml.PropKey]xml.Property
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{props: make(map[xml.PropKey]xml.Property)}
}

// Len returns the number of stored properties.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the property keys in insertion order.
func (r *Record) Keys() []xml.PropKey {
	return append([]xml.PropKey(nil), r.keys...)
}

// Get returns the property stored under key.
func (r *Record) Get(key xml.PropKey) (xml.Property, bool) {
	p, ok := r.props[key]
	return p, ok
}

// GetDAV returns the DAV:-namespaced property with the given local name.
func (r *Record) GetDAV(local string) (xml.Property, bool) {
	return r.Get(xml.PropKey{Space: xml.DAV, Local: local})
}

// Set stores a property, inserting it if absent and replacing the value
// in place if present.
func (r *Record) Set(p xml.Property) {
	key := xml.PropKey{Space: p.Space, Local: p.Local}
	if _, ok := r.props[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.props[key] = p
}

// SetText stores a DAV:-namespaced text property.
func (r *Record) SetText(local, text string) {
	r.Set(xml.Property{Space: xml.DAV, Local: local, TextContent: text})
}

// Delete removes the property stored under key; removing an absent key
// is a no-op.
func (r *Record) Delete(key xml.PropKey) {
	if _, ok := r.props[key]; !ok {
		return
	}
	delete(r.props, key)
	for i := range r.keys {
		if r.keys[i] == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, key := range r.keys {
		p := r.props[key]
		out.Set(p.Clone())
	}
	return out
}

// Filter returns a new record holding only the requested keys that
// exist; unknown requested keys are silently omitted.
func (r *Record) Filter(requested []xml.PropKey) *Record {
	out := NewRecord()
	for _, key := range requested {
		if p, ok := r.props[key]; ok {
			out.Set(p.Clone())
		}
	}
	return out
}

// DropValues returns a structurally identical record with every value
// emptied, for propname responses.
func (r *Record) DropValues() *Record {
	out := NewRecord()
	for _, key := range r.keys {
		p := r.props[key]
		out.Set(p.DropValues())
	}
	return out
}

// Properties returns the stored property trees in insertion order.
func (r *Record) Properties() []xml.Property {
	out := make([]xml.Property, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.props[key])
	}
	return out
}

// Equal reports whether two records hold the same properties in the same
// order.
func (r *Record) Equal(other *Record) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, key := range r.keys {
		if other.keys[i] != key {
			return false
		}
		a, b := r.props[key], other.props[key]
		if !a.Equal(&b) {
			return false
		}
	}
	return true
}

// Apply runs an ordered PROPPATCH update list left-to-right against the
// record and returns the result. A Set on a missing key inserts it. A
// Remove walks every stored tree in insertion order and removes the
// first subtree (at any depth) whose local name matches; no match is a
// no-op.
func (r *Record) Apply(updates []xml.Update) *Record {
	out := r.Clone()
	for _, u := range updates {
		if u.Set != nil {
			out.Set(u.Set.Clone())
			continue
		}
		for _, key := range out.keys {
			p := out.props[key]
			replaced, removed := p.RemoveSubtree(u.Remove)
			if !removed {
				continue
			}
			if replaced == nil {
				out.Delete(key)
			} else {
				out.props[key] = *replaced
			}
			break
		}
	}
	return out
}

// Encode serializes the record to its sidecar payload.
func (r *Record) Encode() ([]byte, error) {
	return xml.MarshalProp(r.Properties())
}

// DecodeRecord reconstructs a record from a sidecar payload.
func DecodeRecord(data []byte) (*Record, error) {
	props, err := xml.UnmarshalProp(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	out := NewRecord()
	for i := range props {
		out.Set(props[i])
	}
	return out, nil
}

// LastModified returns the record's getlastmodified timestamp.
func (r *Record) LastModified() (time.Time, error) {
	p, ok := r.GetDAV(PropGetLastModified)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no getlastmodified property", ErrMalformedRecord)
	}
	t, err := http.ParseTime(p.TextContent)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad getlastmodified %q", ErrMalformedRecord, p.TextContent)
	}
	return t, nil
}

// NewFileRecord builds the default record persisted with file content.
func NewFileRecord(contentType string, size int, now time.Time) *Record {
	r := NewRecord()
	r.SetText(PropGetContentType, contentType)
	r.SetText(PropGetContentLength, strconv.Itoa(size))
	r.SetText(PropCreationDate, now.UTC().Format(time.RFC3339))
	r.SetText(PropGetLastModified, now.UTC().Format(http.TimeFormat))
	return r
}

// NewDirRecord builds the default record for a materialized directory.
// The ctag seeds collection synchronization; clients compare it to
// detect membership changes.
func NewDirRecord(now time.Time) *Record {
	r := NewRecord()
	r.SetText(PropGetContentType, DirContentType)
	r.SetText(PropGetContentLength, "0")
	r.SetText(PropCreationDate, now.UTC().Format(time.RFC3339))
	r.Set(xml.Property{
		Space:       xml.CalendarServer,
		Local:       PropGetCTag,
		TextContent: uuid.NewString(),
	})
	return r
}
