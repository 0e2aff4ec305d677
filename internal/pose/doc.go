// Package pose is the in-memory model for pose-estimation data: skeletons,
// per-keypoint time series, annotated training frames and the containers that
// group them.
//
// # Construction
//
// Every constructor takes an Args struct and a Construction. The
// Construction says where the object comes from:
//
//	c := pose.User()          // calling code; deprecations and count checks fire
//	c := pose.FromStorage()   // read path; both are suppressed
//
// Legacy inputs (inline nodes/edges on PoseEstimation) are normalized once,
// at construction, into a Skeleton. After that every PoseEstimation has at
// most one skeleton and Nodes/Edges are read-only views onto it.
//
// # Ownership
//
// Collections own their members: adding a member sets its parent, and a
// member can only be owned once. Skeleton, Device and video references are
// links and do not change ownership.
//
// # Count agreement
//
// When a PoseEstimation lists video paths or dimensions, their counts should
// match the number of linked devices. Strictness decides whether a mismatch
// is ignored, reported to the Notifier, or returned as an
// apperrors.ErrDeprecated error.
package pose
