// Package run defines the Step and Run entities that flow between the
// diff, assertion and replay layers.
//
// A Step's type is a closed enum validated at every construction boundary
// (NewStep, JSON decoding, Run.Validate). Unknown fields elsewhere in a run
// document are tolerated; an unknown step type never is.
//
// Runs are treated as immutable once materialized. Helpers that change a
// run (WithHashedSteps, Clone) return copies.
package run

// EngineVersion is recorded in the runtime versions of replayed runs.
const EngineVersion = "0.1.0"
