// Package l4retarget owns Layer 4 (Retarget) of the pose data model.
//
// Responsibilities: calibrating a skeleton against a rig's bind pose, the
// per-joint orientation rule table shared by calibration and runtime, and
// per-frame evaluation of the body forward, root position and joint world
// rotations.
// Key types: Retargeter, Config, Snapshot, Stats.
//
// Dependency rule: L4 depends on L2 (l2joints), L3 (l3rig) and geom.
// Degenerate geometry never produces NaN output; the previous reference is
// held and counted instead.
package l4retarget
