package schema

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// Version is the ndx-pose schema version this module writes.
const Version = "0.2.0"

// NWBVersion is the core schema version recorded on the root group.
const NWBVersion = "2.7.0"

// Layout identifies an on-disk arrangement of the pose types.
type Layout int

const (
	// LayoutInline stores nodes and edges as datasets on PoseEstimation (0.1.x).
	LayoutInline Layout = iota + 1
	// LayoutSkeleton links PoseEstimation to a Skeleton (0.2.x).
	LayoutSkeleton
)

func (l Layout) String() string {
	switch l {
	case LayoutInline:
		return "inline nodes/edges"
	case LayoutSkeleton:
		return "skeleton"
	default:
		return "unknown"
	}
}

// canonical turns "0.2.0" into "v0.2.0" for semver.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// LayoutFor maps a stored version to its layout. Unparseable versions,
// versions newer than Version and unknown minor lines fail with
// apperrors.ErrVersion.
func LayoutFor(version string) (Layout, error) {
	v := canonical(version)
	if !semver.IsValid(v) {
		return 0, apperrors.New(apperrors.ErrVersion, "/", "cannot parse schema version %q", version)
	}
	mm := semver.MajorMinor(v)
	if semver.Compare(mm, semver.MajorMinor(canonical(Version))) > 0 {
		return 0, apperrors.New(apperrors.ErrVersion, "/",
			"file was written with schema %s, newer than supported %s", version, Version)
	}
	switch mm {
	case "v0.1":
		return LayoutInline, nil
	case "v0.2":
		return LayoutSkeleton, nil
	}
	return 0, apperrors.New(apperrors.ErrVersion, "/", "schema version %q matches no known layout", version)
}

// Compare orders two versions like semver.Compare, accepting a missing "v".
func Compare(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
