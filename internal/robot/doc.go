// Package robot holds the data model shared by every stage of the control
// cycle: telemetry snapshots, motor commands, the canonical joint naming and
// its mapping onto the physical motor slots used on the wire.
//
// Two orderings exist and must never be confused. Canonical order (FL, FR,
// RL, RR legs, hip/thigh/knee within a leg) is what the policy sees and what
// Pose values use. Physical slot order is what Snapshot.Motors and
// Command.Motors use; JointMap translates between the two.
package robot
