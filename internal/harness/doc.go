// Package harness runs regression scenarios over recorded agent runs.
//
// A scenario names one operation (diff, assert, stub replay or hybrid
// replay), the run files it reads, and assertions on the outcome. Results
// can be snapshotted to golden files with goldie.
//
// # Scenario Format
//
//	name: tool_divergence
//	description: "Candidate called a different tool"
//	mode: diff
//	baseline: ../runs/baseline.json
//	candidate: ../runs/candidate_tool.json
//	assertions:
//	  - type: identical
//	    equals: false
//	  - type: first_divergence
//	    index: 3
//	    status: changed
//	    step_type: tool.request
//	  - type: changed_paths
//	    index: 3
//	    paths: ["/hash", "/metadata/tool"]
//
// Replay scenarios add seed, fixed_clock and (for replay_hybrid) select or
// a CUE policy file. Unknown YAML fields are rejected.
package harness
