// Package l2joints owns Layer 2 (Joints) of the pose data model.
//
// Responsibilities: the 57-slot joint arena, the bone hierarchy, the
// landmark-to-joint preprocessor (direct mapping, derived hip/spine/neck/head
// joints) and the session-scoped temporal smoother.
// Key types: JointID, JointSlot, Skeleton, Smoother.
//
// Dependency rule: L2 depends on L1 (l1landmarks) and geom.
package l2joints
