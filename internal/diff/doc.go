// Package diff aligns two runs step by step and reports structured
// differences.
//
// Alignment is positional: step i of the left run is compared with step i
// of the right run, so a diff costs O(max(len(left), len(right))). Two
// steps with the same type and content hash are identical without any deep
// comparison; the hash is the equality oracle. Everything else is walked
// field by field and reported as JSON pointer changes.
//
// The engine never fails on the shape of the data it compares. A node whose
// kind differs between the two sides is reported as one type_mismatch leaf.
// The only error Runs returns is for invalid options.
package diff
