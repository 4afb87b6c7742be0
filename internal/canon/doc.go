// Package canon provides the JSON value model, canonicalizer and content
// hasher for recorded runs.
//
// This package is the foundational layer: every other internal package
// imports canon, canon imports nothing internal.
//
// Key design constraints:
//   - Value is a closed union (Null, Bool, Int, BigInt, Float, String, Array, Object)
//   - Canonical JSON is ASCII-only, key-sorted, whitespace-free
//   - NaN and infinite floats have no canonical form and are rejected
//   - Canonicalization is idempotent: Canonicalize(Canonicalize(x)) == Canonicalize(x)
//   - Content hashes are "sha256:<hex>" over canonical JSON with volatile keys stripped
package canon
