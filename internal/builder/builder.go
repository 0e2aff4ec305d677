// Package builder is the storage-neutral tree that mappers produce on write
// and consume on read. A tree is made of groups (which hold attributes and
// ordered children), datasets (typed arrays with a shape) and links
// (absolute paths to another group or dataset in the same tree).
//
// The store backends only ever see builder trees; the pose object model
// never does.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// Reserved attribute keys carried by every typed group.
const (
	AttrNeurodataType = "neurodata_type"
	AttrNamespace     = "namespace"
	AttrObjectID      = "object_id"
)

// Group is a node that owns attributes, datasets, links and subgroups.
// Children are kept in insertion order.
type Group struct {
	Name       string
	Attributes map[string]any
	Groups     []*Group
	Datasets   []*Dataset
	Links      []*Link
}

// Link is a non-owning reference to the object at Target.
type Link struct {
	Name   string
	Target string
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name, Attributes: map[string]any{}}
}

// NewTypedGroup returns a group tagged with its type, namespace and object id.
func NewTypedGroup(name, typ, namespace, objectID string) *Group {
	g := NewGroup(name)
	g.SetAttr(AttrNeurodataType, typ)
	g.SetAttr(AttrNamespace, namespace)
	if objectID != "" {
		g.SetAttr(AttrObjectID, objectID)
	}
	return g
}

// SetAttr stores an attribute. Empty strings are kept.
func (g *Group) SetAttr(key string, v any) {
	if g.Attributes == nil {
		g.Attributes = map[string]any{}
	}
	g.Attributes[key] = v
}

// Attr returns a raw attribute value.
func (g *Group) Attr(key string) (any, bool) {
	v, ok := g.Attributes[key]
	return v, ok
}

// AttrString returns a string attribute, or "" when absent or not a string.
func (g *Group) AttrString(key string) string {
	s, _ := g.Attributes[key].(string)
	return s
}

// TypeName returns the neurodata_type attribute.
func (g *Group) TypeName() string { return g.AttrString(AttrNeurodataType) }

// AddGroup appends child and returns it.
func (g *Group) AddGroup(child *Group) *Group {
	g.Groups = append(g.Groups, child)
	return child
}

// AddDataset appends d and returns it.
func (g *Group) AddDataset(d *Dataset) *Dataset {
	g.Datasets = append(g.Datasets, d)
	return d
}

// AddLink appends a link to target.
func (g *Group) AddLink(name, target string) *Link {
	l := &Link{Name: name, Target: target}
	g.Links = append(g.Links, l)
	return l
}

// Group returns the direct subgroup called name, or nil.
func (g *Group) Group(name string) *Group {
	for _, c := range g.Groups {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Dataset returns the direct dataset called name, or nil.
func (g *Group) Dataset(name string) *Dataset {
	for _, d := range g.Datasets {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Link returns the direct link called name, or nil.
func (g *Group) Link(name string) *Link {
	for _, l := range g.Links {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Has reports whether any child (group, dataset or link) is called name.
func (g *Group) Has(name string) bool {
	return g.Group(name) != nil || g.Dataset(name) != nil || g.Link(name) != nil
}

// EnsureGroup returns the untyped subgroup at the relative path, creating
// missing levels.
func (g *Group) EnsureGroup(rel string) *Group {
	cur := g
	for _, part := range splitPath(rel) {
		next := cur.Group(part)
		if next == nil {
			next = cur.AddGroup(NewGroup(part))
		}
		cur = next
	}
	return cur
}

// AttrKeys returns attribute keys in sorted order.
func (g *Group) AttrKeys() []string {
	keys := make([]string, 0, len(g.Attributes))
	for k := range g.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Node is what a path resolves to: exactly one field is set.
type Node struct {
	Group   *Group
	Dataset *Dataset
}

// Resolve follows an absolute path from root. Links met along the way are
// followed, so a path may pass through a linked group.
func Resolve(root *Group, path string) (Node, error) {
	return resolve(root, path, 0)
}

func resolve(root *Group, path string, depth int) (Node, error) {
	if depth > 32 {
		return Node{}, apperrors.New(apperrors.ErrLink, path, "too many nested links")
	}
	if !strings.HasPrefix(path, "/") {
		return Node{}, apperrors.New(apperrors.ErrLink, path, "link targets must be absolute")
	}
	parts := splitPath(path)
	cur := root
	for i, part := range parts {
		last := i == len(parts)-1
		if sub := cur.Group(part); sub != nil {
			cur = sub
			continue
		}
		if d := cur.Dataset(part); d != nil && last {
			return Node{Dataset: d}, nil
		}
		if l := cur.Link(part); l != nil {
			n, err := resolve(root, l.Target, depth+1)
			if err != nil {
				return Node{}, err
			}
			if last {
				return n, nil
			}
			if n.Group == nil {
				return Node{}, apperrors.New(apperrors.ErrNotFound, path, "%q is a dataset, not a group", l.Target)
			}
			cur = n.Group
			continue
		}
		return Node{}, apperrors.New(apperrors.ErrNotFound, path, "no object at %q", "/"+strings.Join(parts[:i+1], "/"))
	}
	return Node{Group: cur}, nil
}

// Walk visits every group under g depth-first with its absolute path.
func Walk(g *Group, fn func(path string, g *Group) error) error {
	return walk("/", g, fn)
}

func walk(path string, g *Group, fn func(string, *Group) error) error {
	if err := fn(path, g); err != nil {
		return err
	}
	for _, c := range g.Groups {
		if err := walk(Join(path, c.Name), c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Join appends name to an absolute path.
func Join(parent, name string) string {
	if parent == "/" || parent == "" {
		return "/" + name
	}
	return parent + "/" + name
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// String renders a one-line summary, mostly for test failures.
func (g *Group) String() string {
	return fmt.Sprintf("Group(%s type=%q groups=%d datasets=%d links=%d)",
		g.Name, g.TypeName(), len(g.Groups), len(g.Datasets), len(g.Links))
}
