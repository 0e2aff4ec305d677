package pose

import (
	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/container"
)

// Skeleton is a set of labeled body parts and the edges between them.
type Skeleton struct {
	container.Base
	Nodes   []string
	Edges   [][2]uint8
	Subject *container.Subject
}

// SkeletonArgs are the inputs to NewSkeleton.
type SkeletonArgs struct {
	Name    string
	Nodes   []string
	Edges   [][2]uint8
	Subject *container.Subject
}

// NewSkeleton validates the topology and returns the skeleton.
//
// Out-of-range edges are rejected in every mode. Self-loops and repeated
// node labels are rejected only for user-constructed skeletons.
func NewSkeleton(args SkeletonArgs, c Construction) (*Skeleton, error) {
	if args.Name == "" {
		return nil, apperrors.New(apperrors.ErrStructure, "", "skeleton name is required")
	}
	s := &Skeleton{
		Base:    container.NewBase(args.Name),
		Nodes:   args.Nodes,
		Edges:   args.Edges,
		Subject: args.Subject,
	}
	if err := s.validate(c.deserialized()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Skeleton) TypeName() string  { return "Skeleton" }
func (s *Skeleton) Namespace() string { return container.NamespacePose }

// Validate runs the full user-level checks.
func (s *Skeleton) Validate() error {
	return s.validate(false)
}

func (s *Skeleton) validate(lenient bool) error {
	path := container.Path(s)
	for i, e := range s.Edges {
		for _, idx := range e {
			if int(idx) >= len(s.Nodes) {
				return apperrors.New(apperrors.ErrShape, path,
					"edge %d references node %d but the skeleton has %d nodes", i, idx, len(s.Nodes))
			}
		}
		if !lenient && e[0] == e[1] {
			return apperrors.New(apperrors.ErrShape, path, "edge %d connects node %d to itself", i, e[0])
		}
	}
	if lenient {
		return nil
	}
	seen := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		if j, ok := seen[n]; ok {
			return apperrors.New(apperrors.ErrShape, path, "node %q appears at index %d and %d", n, j, i)
		}
		seen[n] = i
	}
	return nil
}

// NodeIndex returns the position of label, or -1.
func (s *Skeleton) NodeIndex(label string) int {
	for i, n := range s.Nodes {
		if n == label {
			return i
		}
	}
	return -1
}

// Skeletons is the named collection of skeletons.
type Skeletons struct {
	container.Base
	items *container.Collection[*Skeleton]
}

// NewSkeletons returns a collection holding skeletons. An empty name uses
// the default "Skeletons".
func NewSkeletons(name string, skeletons ...*Skeleton) (*Skeletons, error) {
	if name == "" {
		name = DefaultName("Skeleton", false)
	}
	s := &Skeletons{Base: container.NewBase(name)}
	s.items = container.NewCollection[*Skeleton](s)
	if err := s.items.Add(skeletons...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Skeletons) TypeName() string  { return "Skeletons" }
func (s *Skeletons) Namespace() string { return container.NamespacePose }

// Add inserts skeletons. Names must be unique.
func (s *Skeletons) Add(skeletons ...*Skeleton) error { return s.items.Add(skeletons...) }

// Get returns the skeleton called name.
func (s *Skeletons) Get(name string) (*Skeleton, error) { return s.items.Get(name) }

// All returns skeletons in insertion order.
func (s *Skeletons) All() []*Skeleton { return s.items.All() }

// Len returns the member count.
func (s *Skeletons) Len() int { return s.items.Len() }

func (s *Skeletons) Children() []container.Object { return s.items.Objects() }
