package mapper

import (
	"time"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/schema"
)

// Writer carries the state of one Build call.
type Writer struct {
	file  *container.File
	types *TypeMap
}

// Build renders f and everything attached to it as a builder tree in the
// current schema layout. Links to objects outside f fail with
// apperrors.ErrLink.
func Build(f *container.File, types *TypeMap) (*builder.Group, error) {
	if f == nil {
		return nil, apperrors.New(apperrors.ErrStructure, "/", "no file to write")
	}
	if types == nil {
		types = NewTypeMap()
	}
	w := &Writer{file: f, types: types}

	root := w.Typed(f)
	root.Name = "root"
	root.SetAttr(AttrPoseVersion, schema.Version)
	root.SetAttr(AttrNWBVersion, schema.NWBVersion)
	root.SetAttr(AttrIdentifier, f.Identifier)
	root.SetAttr(AttrSessionDescription, f.SessionDescription)
	if !f.SessionStartTime.IsZero() {
		root.SetAttr(AttrSessionStartTime, f.SessionStartTime.Format(time.RFC3339Nano))
	}

	if s := f.Subject(); s != nil {
		g, err := w.Child(s)
		if err != nil {
			return nil, err
		}
		root.EnsureGroup("general").AddGroup(g)
	}
	if devices := f.Devices(); len(devices) > 0 {
		parent := root.EnsureGroup("general/devices")
		for _, d := range devices {
			g, err := w.Child(d)
			if err != nil {
				return nil, err
			}
			parent.AddGroup(g)
		}
	}
	if modules := f.ProcessingModules(); len(modules) > 0 {
		parent := root.EnsureGroup("processing")
		for _, m := range modules {
			g, err := w.Child(m)
			if err != nil {
				return nil, err
			}
			parent.AddGroup(g)
		}
	}
	return root, nil
}

// Child renders obj with the mapper registered for its type.
func (w *Writer) Child(obj container.Object) (*builder.Group, error) {
	m, err := w.types.Lookup(obj.TypeName())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructure, container.Path(obj), err, "cannot write %s", obj.TypeName())
	}
	return m.Build(w, obj)
}

// Children renders every object in order.
func (w *Writer) Children(objs []container.Object) ([]*builder.Group, error) {
	out := make([]*builder.Group, 0, len(objs))
	for _, o := range objs {
		g, err := w.Child(o)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Typed returns an empty group carrying obj's name, type, namespace and
// object_id.
func (w *Writer) Typed(obj container.Object) *builder.Group {
	return builder.NewTypedGroup(obj.Name(), obj.TypeName(), obj.Namespace(), obj.ObjectID())
}

// LinkPath returns the stored path of target for the slot of from. The
// target must be attached to the file being written.
func (w *Writer) LinkPath(from, target container.Object, slot string) (string, error) {
	if container.Root(target) != container.Object(w.file) {
		return "", apperrors.New(apperrors.ErrLink, container.Path(from),
			"%s links to %s %q, which is not part of this file", slot, target.TypeName(), target.Name())
	}
	return container.Path(target), nil
}

// AddLink adds a link from g to target.
func (w *Writer) AddLink(g *builder.Group, from, target container.Object, slot string) error {
	p, err := w.LinkPath(from, target, slot)
	if err != nil {
		return err
	}
	g.AddLink(slot, p)
	return nil
}

// fixedName checks that a collection stored in a named slot carries that name.
func fixedName(owner, child container.Object, want string) error {
	if child.Name() != want {
		return apperrors.New(apperrors.ErrStructure, container.Path(owner),
			"%s must be named %q to be stored, found %q", child.TypeName(), want, child.Name())
	}
	return nil
}
