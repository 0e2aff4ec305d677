package container

import (
	"reflect"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// Collection is an ordered, name-keyed set of children owned by one parent.
// Iteration follows insertion order; lookup is by name.
type Collection[T Object] struct {
	owner Object
	items []T
	index map[string]int
}

// NewCollection returns an empty collection whose members will be owned by owner.
func NewCollection[T Object](owner Object) *Collection[T] {
	return &Collection[T]{owner: owner, index: make(map[string]int)}
}

// Add inserts items in order. Either all items are added or none: a nil
// item, a File, a name that is already present (or repeated within items),
// or an item owned by another parent leaves the collection unchanged.
func (c *Collection[T]) Add(items ...T) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if isNil(item) {
			return apperrors.New(apperrors.ErrStructure, Path(c.owner), "item %d is nil", i)
		}
		if f, ok := any(item).(*File); ok {
			return apperrors.New(apperrors.ErrConflict, Path(c.owner),
				"file %q cannot be nested inside %s", f.Name(), c.owner.Name())
		}
		name := item.Name()
		if _, ok := c.index[name]; ok {
			return apperrors.New(apperrors.ErrDuplicateName, Path(c.owner),
				"%s %q already exists in %s", item.TypeName(), name, c.owner.Name())
		}
		if _, ok := seen[name]; ok {
			return apperrors.New(apperrors.ErrDuplicateName, Path(c.owner),
				"%s %q given twice", item.TypeName(), name)
		}
		seen[name] = struct{}{}
		if p := item.Parent(); p != nil && p != c.owner {
			return apperrors.New(apperrors.ErrConflict, Path(item),
				"%s %q already belongs to %s", item.TypeName(), name, Path(p))
		}
	}

	for _, item := range items {
		if err := item.SetParent(c.owner); err != nil {
			return err
		}
		c.index[item.Name()] = len(c.items)
		c.items = append(c.items, item)
	}
	return nil
}

// Get returns the member called name.
func (c *Collection[T]) Get(name string) (T, error) {
	i, ok := c.index[name]
	if !ok {
		var zero T
		return zero, apperrors.New(apperrors.ErrNotFound, Path(c.owner),
			"%q not found in %s", name, c.owner.Name())
	}
	return c.items[i], nil
}

// Has reports whether a member called name exists.
func (c *Collection[T]) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// All returns the members in insertion order.
func (c *Collection[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Names returns member names in insertion order.
func (c *Collection[T]) Names() []string {
	out := make([]string, len(c.items))
	for i, item := range c.items {
		out[i] = item.Name()
	}
	return out
}

// Len returns the member count.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Objects returns the members as plain Objects.
func (c *Collection[T]) Objects() []Object {
	out := make([]Object, len(c.items))
	for i, item := range c.items {
		out[i] = item
	}
	return out
}

func isNil(o Object) bool {
	if o == nil {
		return true
	}
	v := reflect.ValueOf(o)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
