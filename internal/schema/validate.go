package schema

import (
	"errors"
	"fmt"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
)

// NamespaceName is the namespace attribute value of ndx-pose groups.
const NamespaceName = "ndx-pose"

// coreSubtypes lists the core types that stand in for their parent type.
var coreSubtypes = map[string]string{
	"RGBImage":       "Image",
	"RGBAImage":      "Image",
	"GrayscaleImage": "Image",
}

func isA(actual, want string) bool {
	return actual == want || coreSubtypes[actual] == want
}

// Validate checks every ndx-pose group under root against its declared type:
// required attributes, datasets, groups and links must be present, dataset
// element kinds must match, typed slots must hold the declared type and links
// must point at the declared target type. All violations are returned joined;
// each is an *apperrors.Error of kind ErrStructure.
func Validate(root *builder.Group) error {
	spec, err := Load()
	if err != nil {
		return err
	}
	var errs []error
	_ = builder.Walk(root, func(path string, g *builder.Group) error {
		if g.AttrString(builder.AttrNamespace) != NamespaceName {
			return nil
		}
		def, ok := spec.Type(g.TypeName())
		if !ok {
			errs = append(errs, structErr(path, "unknown type %q", g.TypeName()))
			return nil
		}
		errs = append(errs, checkGroup(root, path, g, def)...)
		return nil
	})
	return errors.Join(errs...)
}

func structErr(path, format string, args ...any) error {
	return apperrors.New(apperrors.ErrStructure, path, format, args...)
}

func checkGroup(root *builder.Group, path string, g *builder.Group, def *GroupSpec) []error {
	var errs []error

	for _, a := range def.Attributes {
		if _, ok := g.Attr(a.Name); !ok && a.IsRequired() {
			errs = append(errs, structErr(path, "missing attribute %q", a.Name))
		}
	}

	for _, ds := range def.Datasets {
		d := g.Dataset(ds.Name)
		if d == nil {
			if l := g.Link(ds.Name); l != nil {
				n, err := builder.Resolve(root, l.Target)
				if err != nil || n.Dataset == nil {
					errs = append(errs, structErr(path, "link %q does not resolve to a dataset", ds.Name))
					continue
				}
				d = n.Dataset
			}
		}
		if d == nil {
			if ds.Quantity.Required() {
				errs = append(errs, structErr(path, "missing dataset %q", ds.Name))
			}
			continue
		}
		if want, got := family(ds.Dtype), family(string(d.Dtype)); want != got {
			errs = append(errs, structErr(builder.Join(path, ds.Name), "expected %s data, found %s", ds.Dtype, d.Dtype))
		}
		for _, a := range ds.Attributes {
			if _, ok := d.Attributes[a.Name]; !ok && a.IsRequired() {
				errs = append(errs, structErr(builder.Join(path, ds.Name), "missing attribute %q", a.Name))
			}
		}
	}

	for i := range def.Groups {
		slot := &def.Groups[i]
		if slot.Name != "" {
			child := g.Group(slot.Name)
			if child == nil {
				if slot.Quantity.Required() {
					errs = append(errs, structErr(path, "missing group %q", slot.Name))
				}
				continue
			}
			if slot.TypeInc != "" && !isA(child.TypeName(), slot.TypeInc) {
				errs = append(errs, structErr(builder.Join(path, slot.Name),
					"expected a %s, found %q", slot.TypeInc, child.TypeName()))
			}
			if slot.TypeInc == "" {
				errs = append(errs, checkGroup(root, builder.Join(path, slot.Name), child, slot)...)
			}
			continue
		}
		count := 0
		for _, c := range g.Groups {
			if isA(c.TypeName(), slot.TypeInc) {
				count++
			}
		}
		if count == 0 && slot.Quantity.Required() {
			errs = append(errs, structErr(path, "expected at least one %s", slot.TypeInc))
		}
		if count > 1 && !slot.Quantity.Many() {
			errs = append(errs, structErr(path, "expected at most one %s, found %d", slot.TypeInc, count))
		}
	}

	errs = append(errs, checkLinks(root, path, g, def)...)
	return errs
}

func checkLinks(root *builder.Group, path string, g *builder.Group, def *GroupSpec) []error {
	var errs []error
	slots := def.Links
	named := map[string]bool{}
	// Dataset slots may be filled by links; the dataset checks cover those.
	for _, ds := range def.Datasets {
		named[ds.Name] = true
	}
	for _, slot := range slots {
		if slot.Name == "" {
			continue
		}
		named[slot.Name] = true
		l := g.Link(slot.Name)
		if l == nil {
			if slot.Quantity.Required() {
				errs = append(errs, structErr(path, "missing link %q", slot.Name))
			}
			continue
		}
		if err := checkTarget(root, path, l, slot.TargetType); err != nil {
			errs = append(errs, err)
		}
	}

	for _, l := range g.Links {
		if named[l.Name] {
			continue
		}
		ok := false
		for _, slot := range slots {
			if slot.Name == "" && checkTarget(root, path, l, slot.TargetType) == nil {
				ok = true
				break
			}
		}
		if !ok {
			errs = append(errs, structErr(path, "unexpected link %q to %s", l.Name, l.Target))
		}
	}
	return errs
}

func checkTarget(root *builder.Group, path string, l *builder.Link, want string) error {
	n, err := builder.Resolve(root, l.Target)
	if err != nil {
		return structErr(path, "link %q is broken: %v", l.Name, err)
	}
	if n.Group == nil {
		return structErr(path, "link %q points at a dataset, expected a %s", l.Name, want)
	}
	if got := n.Group.TypeName(); !isA(got, want) {
		return structErr(path, "link %q points at a %s, expected a %s", l.Name, got, want)
	}
	return nil
}

func family(dtype string) string {
	switch dtype {
	case "text", "utf8", "ascii":
		return "text"
	case "bool":
		return "bool"
	case "":
		return ""
	default:
		return "numeric"
	}
}

// Summary is a short description of the loaded namespace for logs.
func (s *Spec) Summary() string {
	return fmt.Sprintf("%s %s (%d types)", s.Namespace.Name, s.Namespace.Version, len(s.order))
}
