package mapper

import (
	"sort"
	"strings"
	"time"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/pose"
	"github.com/rly/ndx-pose/internal/schema"
)

// Reader carries the state of one Construct call. Objects are memoized by
// path, so a link target is built once no matter how many links reach it or
// whether the link or the owning parent is visited first.
type Reader struct {
	root     *builder.Group
	types    *TypeMap
	version  string
	layout   schema.Layout
	built    map[string]container.Object
	building map[string]bool
	c        pose.Construction
}

// ReadOption configures Construct.
type ReadOption func(*Reader)

// WithNotifier routes any notice raised while constructing objects to n.
// Reads are not expected to raise any.
func WithNotifier(n pose.Notifier) ReadOption {
	return func(r *Reader) {
		r.c = r.c.WithNotifier(n)
	}
}

// Construct rebuilds a File from a builder tree written with any supported
// schema version.
func Construct(root *builder.Group, types *TypeMap, opts ...ReadOption) (*container.File, error) {
	if root == nil {
		return nil, apperrors.New(apperrors.ErrStructure, "/", "no tree to read")
	}
	if types == nil {
		types = NewTypeMap()
	}
	version := root.AttrString(AttrPoseVersion)
	if version == "" {
		return nil, apperrors.New(apperrors.ErrStructure, "/", "missing %s attribute", AttrPoseVersion)
	}
	layout, err := schema.LayoutFor(version)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		root:     root,
		types:    types,
		version:  version,
		layout:   layout,
		built:    map[string]container.Object{},
		building: map[string]bool{},
		c:        pose.FromStorage(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var start time.Time
	if s := root.AttrString(AttrSessionStartTime); s != "" {
		if start, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStructure, "/", err, "invalid %s", AttrSessionStartTime)
		}
	}
	f := container.NewFile(root.AttrString(AttrIdentifier), root.AttrString(AttrSessionDescription), start)
	f.SetObjectID(root.AttrString(builder.AttrObjectID))
	f.SchemaVersion = version

	if general := root.Group("general"); general != nil {
		if general.Group("subject") != nil {
			s, err := objectAs[*container.Subject](r, "/general/subject")
			if err != nil {
				return nil, err
			}
			if err := f.SetSubject(s); err != nil {
				return nil, err
			}
		}
		if devices := general.Group("devices"); devices != nil {
			list, err := membersAs[*container.Device](r, "/general/devices", devices)
			if err != nil {
				return nil, err
			}
			for _, d := range list {
				if err := f.AddDevice(d); err != nil {
					return nil, err
				}
			}
		}
	}
	if processing := root.Group("processing"); processing != nil {
		list, err := membersAs[*container.ProcessingModule](r, "/processing", processing)
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			if err := f.AddProcessingModule(m); err != nil {
				return nil, err
			}
		}
	}

	if err := r.checkAdopted(); err != nil {
		return nil, err
	}
	return f, nil
}

// Version returns the schema version recorded in the tree.
func (r *Reader) Version() string { return r.version }

// Layout returns the layout the tree was written with.
func (r *Reader) Layout() schema.Layout { return r.layout }

// Construction is the mode every constructor on the read path receives.
func (r *Reader) Construction() pose.Construction { return r.c }

// Object returns the object stored at path, constructing it on first use.
func (r *Reader) Object(path string) (container.Object, error) {
	if obj, ok := r.built[path]; ok {
		return obj, nil
	}
	if r.building[path] {
		return nil, apperrors.New(apperrors.ErrLink, path, "reference cycle")
	}
	n, err := builder.Resolve(r.root, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructure, path, err, "cannot resolve")
	}
	if n.Group == nil {
		return nil, apperrors.New(apperrors.ErrStructure, path, "expected a group, found dataset %q", n.Dataset.Name)
	}
	typ := n.Group.TypeName()
	if typ == "" {
		return nil, apperrors.New(apperrors.ErrStructure, path, "group has no %s attribute", builder.AttrNeurodataType)
	}
	m, err := r.types.Lookup(typ)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructure, path, err, "cannot read %s", typ)
	}

	r.building[path] = true
	defer delete(r.building, path)
	obj, err := m.Construct(r, path, n.Group)
	if err != nil {
		return nil, err
	}
	if b, ok := obj.(interface{ SetObjectID(string) }); ok {
		b.SetObjectID(n.Group.AttrString(builder.AttrObjectID))
	}
	r.built[path] = obj
	return obj, nil
}

// Link constructs the target of g's link called slot. ok is false when the
// link is absent.
func (r *Reader) Link(g *builder.Group, slot string) (obj container.Object, ok bool, err error) {
	l := g.Link(slot)
	if l == nil {
		return nil, false, nil
	}
	obj, err = r.Object(l.Target)
	return obj, true, err
}

// checkAdopted fails when a link reached an object that no parent adopted,
// which happens when the target lives outside the known layout.
func (r *Reader) checkAdopted() error {
	paths := make([]string, 0, len(r.built))
	for p := range r.built {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if !container.Attached(r.built[p]) {
			return apperrors.New(apperrors.ErrStructure, p, "linked object is not part of the file hierarchy")
		}
	}
	return nil
}

// objectAs constructs the object at path and checks its Go type.
func objectAs[T container.Object](r *Reader, path string) (T, error) {
	var zero T
	obj, err := r.Object(path)
	if err != nil {
		return zero, err
	}
	return castAs[T](obj, path)
}

// linkAs constructs the target of a link and checks its Go type.
func linkAs[T container.Object](r *Reader, path string, g *builder.Group, slot string) (T, bool, error) {
	var zero T
	obj, ok, err := r.Link(g, slot)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := castAs[T](obj, builder.Join(path, slot))
	return v, true, err
}

func castAs[T container.Object](obj container.Object, path string) (T, error) {
	v, ok := obj.(T)
	if !ok {
		var zero T
		return zero, apperrors.New(apperrors.ErrStructure, path, "expected %T, found %s", zero, obj.TypeName())
	}
	return v, nil
}

// membersAs constructs every typed subgroup of g and checks each Go type.
func membersAs[T container.Object](r *Reader, path string, g *builder.Group) ([]T, error) {
	var out []T
	for _, c := range g.Groups {
		if c.TypeName() == "" {
			continue
		}
		v, err := objectAs[T](r, builder.Join(path, c.Name))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// linkedAs constructs the targets of every link in g, in order.
func linkedAs[T container.Object](r *Reader, path string, g *builder.Group) ([]T, error) {
	out := make([]T, 0, len(g.Links))
	for _, l := range g.Links {
		v, _, err := linkAs[T](r, path, g, l.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ownerOf maps a link to a shared dataset back to the group that holds it.
func ownerOf(target, dataset string) (string, bool) {
	suffix := "/" + dataset
	if !strings.HasSuffix(target, suffix) {
		return "", false
	}
	owner := strings.TrimSuffix(target, suffix)
	return owner, owner != ""
}
