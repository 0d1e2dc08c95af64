// Package model contains the declarative pipeline definition a run is
// seeded from: the ordered phase specs, their dependency edges and the
// branch fan-out shape.  Runtime state lives in the `run` sub-package.
//
// Definitions are typically loaded from a YAML document or built with
// DefaultDefinition.
package model
