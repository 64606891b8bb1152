// Package l1landmarks owns Layer 1 (Landmarks) of the pose data model.
//
// Responsibilities: the 33-point landmark frame produced by the pose
// tracker, boundary validation, the landmark datagram wire format,
// projection of normalized screen landmarks, and a synthetic source.
// Key types: Frame, Parser, Projector, Generator.
//
// Dependency rule: L1 depends only on geom. Frames leaving this package
// are shape-checked; nothing downstream validates them again.
package l1landmarks
