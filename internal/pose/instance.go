package pose

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/container"
)

// DefaultInstanceName is used when SkeletonInstanceArgs.Name is empty.
const DefaultInstanceName = "skeleton_instance"

// SkeletonInstance is one observation of a skeleton's node positions.
type SkeletonInstance struct {
	container.Base
	// ID correlates instances of the same animal across frames. Nil when absent.
	ID             *uint64
	NodeLocations  *mat.Dense
	NodeVisibility []bool
	Skeleton       *Skeleton
}

// SkeletonInstanceArgs are the inputs to NewSkeletonInstance.
type SkeletonInstanceArgs struct {
	Name           string
	ID             *uint64
	NodeLocations  *mat.Dense
	NodeVisibility []bool
	Skeleton       *Skeleton
}

// NewSkeletonInstance checks node_locations and node_visibility against the
// skeleton's node count.
func NewSkeletonInstance(args SkeletonInstanceArgs, _ Construction) (*SkeletonInstance, error) {
	name := args.Name
	if name == "" {
		name = DefaultInstanceName
	}
	si := &SkeletonInstance{
		Base:           container.NewBase(name),
		ID:             args.ID,
		NodeLocations:  args.NodeLocations,
		NodeVisibility: args.NodeVisibility,
		Skeleton:       args.Skeleton,
	}
	if err := si.Validate(); err != nil {
		return nil, err
	}
	return si, nil
}

func (si *SkeletonInstance) TypeName() string  { return "SkeletonInstance" }
func (si *SkeletonInstance) Namespace() string { return container.NamespacePose }

// Validate checks shapes against the linked skeleton.
func (si *SkeletonInstance) Validate() error {
	path := container.Path(si)
	if si.Skeleton == nil {
		return apperrors.New(apperrors.ErrLink, path, "skeleton is required")
	}
	if si.NodeLocations == nil {
		return apperrors.New(apperrors.ErrShape, path, "node_locations is required")
	}
	nodes := len(si.Skeleton.Nodes)
	rows, cols := si.NodeLocations.Dims()
	if cols != 2 && cols != 3 {
		return apperrors.New(apperrors.ErrShape, path, "node_locations must have 2 or 3 columns, got %d", cols)
	}
	if rows != nodes {
		return apperrors.New(apperrors.ErrShape, path,
			"node_locations has %d rows, skeleton %q has %d nodes", rows, si.Skeleton.Name(), nodes)
	}
	if si.NodeVisibility != nil && len(si.NodeVisibility) != nodes {
		return apperrors.New(apperrors.ErrShape, path,
			"node_visibility has %d values, skeleton %q has %d nodes", len(si.NodeVisibility), si.Skeleton.Name(), nodes)
	}
	return nil
}

// SkeletonInstances is the collection of instances in one training frame.
type SkeletonInstances struct {
	container.Base
	items *container.Collection[*SkeletonInstance]
}

// NewSkeletonInstances returns a collection holding instances. An empty name
// uses the default "skeleton_instances".
func NewSkeletonInstances(name string, instances ...*SkeletonInstance) (*SkeletonInstances, error) {
	if name == "" {
		name = DefaultName("SkeletonInstance", true)
	}
	s := &SkeletonInstances{Base: container.NewBase(name)}
	s.items = container.NewCollection[*SkeletonInstance](s)
	if err := s.items.Add(instances...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SkeletonInstances) TypeName() string  { return "SkeletonInstances" }
func (s *SkeletonInstances) Namespace() string { return container.NamespacePose }

// Add inserts instances. Names must be unique.
func (s *SkeletonInstances) Add(instances ...*SkeletonInstance) error {
	return s.items.Add(instances...)
}

// Get returns the instance called name.
func (s *SkeletonInstances) Get(name string) (*SkeletonInstance, error) { return s.items.Get(name) }

// All returns instances in insertion order.
func (s *SkeletonInstances) All() []*SkeletonInstance { return s.items.All() }

// Len returns the member count.
func (s *SkeletonInstances) Len() int { return s.items.Len() }

func (s *SkeletonInstances) Children() []container.Object { return s.items.Objects() }
