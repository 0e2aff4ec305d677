// Package container provides the hierarchical namespace that pose objects are
// attached to, plus the core collaborator types (File, ProcessingModule,
// Device, Subject, ImageSeries, Image) that pose objects link to.
//
// An object is "attached" once its chain of parents ends at a *File. Links
// between objects are plain Go pointers; attachment is what makes a link
// target addressable by path when the graph is written.
package container

import (
	"strings"

	"github.com/google/uuid"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// Namespaces that types are declared in.
const (
	NamespaceCore = "core"
	NamespacePose = "ndx-pose"
)

// Object is anything that lives in the container hierarchy.
type Object interface {
	Name() string
	TypeName() string
	Namespace() string
	ObjectID() string
	Parent() Object
	SetParent(p Object) error
}

// Container is an Object that owns children.
type Container interface {
	Object
	Children() []Object
}

// ChildLocator lets a parent place a child somewhere other than directly
// under its own path (File puts devices under general/devices).
type ChildLocator interface {
	ChildPath(child Object) string
}

// Base carries the fields every Object shares. Embed it by value.
type Base struct {
	name     string
	objectID string
	parent   Object
}

// NewBase returns a Base with a fresh object_id.
func NewBase(name string) Base {
	return Base{name: name, objectID: uuid.NewString()}
}

func (b *Base) Name() string     { return b.name }
func (b *Base) ObjectID() string { return b.objectID }
func (b *Base) Parent() Object   { return b.parent }

// SetObjectID restores a persisted object_id. Empty ids are ignored.
func (b *Base) SetObjectID(id string) {
	if id != "" {
		b.objectID = id
	}
}

// SetParent records ownership. An object can only have one parent.
func (b *Base) SetParent(p Object) error {
	if b.parent != nil && b.parent != p {
		return apperrors.New(apperrors.ErrConflict, "/"+b.name,
			"object %q already belongs to %q", b.name, Path(b.parent))
	}
	b.parent = p
	return nil
}

// Root returns the top of o's parent chain.
func Root(o Object) Object {
	if o == nil {
		return nil
	}
	cur := o
	for cur.Parent() != nil {
		cur = cur.Parent()
	}
	return cur
}

// Attached reports whether o is reachable from a *File.
func Attached(o Object) bool {
	_, ok := Root(o).(*File)
	return ok
}

// SameFile reports whether a and b are attached to the same *File.
func SameFile(a, b Object) bool {
	ra, ok := Root(a).(*File)
	if !ok {
		return false
	}
	return ra == Root(b)
}

// Path returns the absolute location of o. For unattached objects the path
// starts at the topmost ancestor.
func Path(o Object) string {
	if o == nil {
		return ""
	}
	var parts []string
	for cur := o; cur != nil; cur = cur.Parent() {
		if _, ok := cur.(*File); ok {
			break
		}
		rel := cur.Name()
		if loc, ok := cur.Parent().(ChildLocator); ok {
			rel = loc.ChildPath(cur)
		}
		parts = append(parts, rel)
	}
	if len(parts) == 0 {
		return "/"
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
