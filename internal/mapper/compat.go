package mapper

import (
	"github.com/google/uuid"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/pose"
	"github.com/rly/ndx-pose/internal/schema"
)

// skeletonLayout is what a stored PoseEstimation group says about its
// skeleton.
type skeletonLayout int

const (
	skeletonAbsent skeletonLayout = iota
	skeletonInline
	skeletonEmbedded
	skeletonLinked
)

// detectSkeleton classifies g. Inline nodes together with a skeleton group or
// link is ambiguous, and edges without nodes is malformed.
func detectSkeleton(path string, g *builder.Group) (skeletonLayout, *builder.Group, error) {
	hasNodes := g.Dataset("nodes") != nil
	hasEdges := g.Dataset("edges") != nil
	hasLink := g.Link("skeleton") != nil
	var embedded []*builder.Group
	for _, c := range g.Groups {
		if c.TypeName() == "Skeleton" {
			embedded = append(embedded, c)
		}
	}

	switch {
	case hasEdges && !hasNodes:
		return 0, nil, apperrors.New(apperrors.ErrStructure, path, "edges dataset without nodes")
	case hasNodes && (hasLink || len(embedded) > 0):
		return 0, nil, apperrors.New(apperrors.ErrVersion, path,
			"both inline nodes/edges and a skeleton are present; the layout is ambiguous")
	case hasLink && len(embedded) > 0, len(embedded) > 1:
		return 0, nil, apperrors.New(apperrors.ErrStructure, path, "more than one skeleton")
	case hasNodes:
		return skeletonInline, nil, nil
	case hasLink:
		return skeletonLinked, nil, nil
	case len(embedded) == 1:
		return skeletonEmbedded, embedded[0], nil
	}
	return skeletonAbsent, nil, nil
}

// readSkeleton fills the skeleton inputs of args according to the file's
// layout. Inline nodes/edges are handed to the legacy constructor inputs so
// the skeleton is synthesized the same way it is for callers.
func readSkeleton(r *Reader, path string, g *builder.Group, args *pose.PoseEstimationArgs) error {
	kind, embedded, err := detectSkeleton(path, g)
	if err != nil {
		return err
	}
	switch kind {
	case skeletonInline:
		if r.layout != schema.LayoutInline {
			return apperrors.New(apperrors.ErrVersion, path,
				"inline nodes/edges are not part of the %s layout of version %s", r.layout, r.version)
		}
		if args.Nodes, err = optionalStrings(g, "nodes"); err != nil {
			return err
		}
		if d := g.Dataset("edges"); d != nil {
			if args.Edges, err = narrowPairs[uint8](path, d); err != nil {
				return err
			}
		}
	case skeletonEmbedded, skeletonLinked:
		if r.layout != schema.LayoutSkeleton {
			return apperrors.New(apperrors.ErrVersion, path,
				"a skeleton group or link is not part of the %s layout of version %s", r.layout, r.version)
		}
		if kind == skeletonLinked {
			args.Skeleton, _, err = linkAs[*pose.Skeleton](r, path, g, "skeleton")
			return err
		}
		args.Skeleton, err = objectAs[*pose.Skeleton](r, builder.Join(path, embedded.Name))
		args.EmbedSkeleton = true
		return err
	}
	return nil
}

// legacySkeletonID is the object_id of the skeleton synthesized from the
// inline nodes/edges of the PoseEstimation with id estimationID. It depends
// only on estimationID so every read of a file yields the same id.
func legacySkeletonID(estimationID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(estimationID+"/"+pose.LegacySkeletonName)).String()
}
