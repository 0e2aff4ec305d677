// Package mapper converts between the pose object graph and builder trees.
//
// Each neurodata type has an explicit Mapper that knows how to write one
// object into a builder group and how to rebuild the object from that group.
// Mappers are collected in a TypeMap, which is created per session and passed
// explicitly; there is no package-level registry.
//
// Writing always produces the current schema layout. Reading detects the
// layout from the ndx_pose_version root attribute and accepts both the 0.1.x
// inline nodes/edges layout and the 0.2.x skeleton layout. Objects rebuilt
// from a tree are constructed with pose.FromStorage(), so deprecation
// notices and count checks never fire on read.
//
// Example:
//
//	types := mapper.NewTypeMap()
//	root, err := mapper.Build(file, types)
//	if err != nil {
//	    return err
//	}
//	again, err := mapper.Construct(root, types)
package mapper

import (
	"fmt"
	"sort"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/container"
)

// Root attributes written on every file.
const (
	AttrPoseVersion        = "ndx_pose_version"
	AttrNWBVersion         = "nwb_version"
	AttrIdentifier         = "identifier"
	AttrSessionDescription = "session_description"
	AttrSessionStartTime   = "session_start_time"
)

// Mapper writes and reads one or more neurodata types.
type Mapper interface {
	// Types lists the neurodata type names the mapper handles.
	Types() []string
	// Build renders obj as a group named after the object.
	Build(w *Writer, obj container.Object) (*builder.Group, error)
	// Construct rebuilds the object stored in g at path. The result is not
	// attached; the caller's parent adopts it.
	Construct(r *Reader, path string, g *builder.Group) (container.Object, error)
}

// TypeMap is the registry of mappers for one session.
type TypeMap struct {
	mappers map[string]Mapper
}

// NewTypeMap returns a registry holding the core and ndx-pose mappers.
func NewTypeMap() *TypeMap {
	tm := &TypeMap{mappers: map[string]Mapper{}}
	for _, m := range []Mapper{
		deviceMapper{},
		subjectMapper{},
		imageSeriesMapper{},
		imageMapper{},
		imagesMapper{},
		processingModuleMapper{},
		skeletonMapper{},
		skeletonsMapper{},
		seriesMapper{},
		estimationMapper{},
		instanceMapper{},
		instancesMapper{},
		trainingFrameMapper{},
		trainingFramesMapper{},
		sourceVideosMapper{},
		trainingMapper{},
	} {
		tm.Register(m)
	}
	return tm
}

// Register adds m under every type it handles, replacing earlier entries.
func (tm *TypeMap) Register(m Mapper) {
	for _, typ := range m.Types() {
		tm.mappers[typ] = m
	}
}

// Lookup returns the mapper for typ.
func (tm *TypeMap) Lookup(typ string) (Mapper, error) {
	m, ok := tm.mappers[typ]
	if !ok {
		return nil, apperrors.New(apperrors.ErrStructure, "", "no mapper for type %q", typ)
	}
	return m, nil
}

// Types returns the registered type names in sorted order.
func (tm *TypeMap) Types() []string {
	out := make([]string, 0, len(tm.mappers))
	for typ := range tm.mappers {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Remap ties an object field to an attribute of a dataset on disk.
type Remap struct {
	Type    string
	Field   string
	Dataset string
	Attr    string
}

// Remaps is used by both the writer and the reader.
var Remaps = []Remap{
	{Type: "PoseEstimationSeries", Field: "confidence_definition", Dataset: "confidence", Attr: "definition"},
	{Type: "PoseEstimation", Field: "source_software_version", Dataset: "source_software", Attr: "version"},
}

func remapFor(typ, field string) Remap {
	for _, r := range Remaps {
		if r.Type == typ && r.Field == field {
			return r
		}
	}
	panic(fmt.Sprintf("mapper: no remap for %s.%s", typ, field))
}

// putRemapped stores v on the remapped dataset in g. It reports false when
// the dataset does not exist.
func putRemapped(g *builder.Group, typ, field string, v any) bool {
	r := remapFor(typ, field)
	d := g.Dataset(r.Dataset)
	if d == nil {
		return false
	}
	d.SetAttr(r.Attr, v)
	return true
}

// getRemapped reads a remapped string field, or "" when absent.
func getRemapped(g *builder.Group, typ, field string) string {
	r := remapFor(typ, field)
	d := g.Dataset(r.Dataset)
	if d == nil {
		return ""
	}
	return d.AttrString(r.Attr)
}
