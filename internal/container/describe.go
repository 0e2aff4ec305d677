package container

import (
	"errors"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Walk visits root and its owned descendants depth-first in child order.
// Returning an error from fn stops the walk.
func Walk(root Object, fn func(Object) error) error {
	if err := fn(root); err != nil {
		return err
	}
	c, ok := root.(Container)
	if !ok {
		return nil
	}
	for _, child := range c.Children() {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

var errStop = errors.New("stop")

// Find returns the owned descendant of root at the absolute path.
func Find(root Object, path string) (Object, bool) {
	var found Object
	_ = Walk(root, func(o Object) error {
		if Path(o) == path {
			found = o
			return errStop
		}
		return nil
	})
	return found, found != nil
}

// Describe writes a table of every object under root: path, type, namespace
// and object_id.
func Describe(w io.Writer, root Object) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Path", "Type", "Namespace", "Object ID"})

	_ = Walk(root, func(o Object) error {
		t.AppendRow(table.Row{Path(o), o.TypeName(), o.Namespace(), o.ObjectID()})
		return nil
	})
	t.Render()
}
