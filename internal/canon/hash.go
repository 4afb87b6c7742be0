package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashPrefix labels the digest algorithm in every content hash.
const HashPrefix = "sha256:"

// Digest returns "sha256:" + hex(sha256(data)).
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// Hex12 returns the first 12 hex characters of sha256(data).
func Hex12(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// HashValue canonicalizes v under opts and returns its digest.
func HashValue(v Value, opts Options) (string, error) {
	b, err := CanonicalJSON(v, opts)
	if err != nil {
		return "", err
	}
	return Digest(b), nil
}

// Hasher computes step content hashes under a fixed set of options.
// The zero value is not useful; use NewHasher or DefaultHasher.
type Hasher struct {
	opts Options
}

// NewHasher returns a hasher using opts with volatile stripping forced on.
func NewHasher(opts Options) Hasher {
	opts.StripVolatile = true
	return Hasher{opts: opts}
}

// DefaultHasher hashes with the standard volatile and unordered field sets.
func DefaultHasher() Hasher {
	return Hasher{opts: HashOptions()}
}

// Options returns the canonicalization options used by the hasher.
func (h Hasher) Options() Options {
	return h.opts
}

// StepHash computes the content hash of one step:
//
//	"sha256:" + hex(sha256(canonicalJSON({type,input,output,metadata})))
//
// with volatile keys stripped at every depth. Nil input or output hash as
// null; nil metadata hashes as an empty object.
func (h Hasher) StepHash(stepType string, input, output Value, metadata Object) (string, error) {
	if metadata == nil {
		metadata = Object{}
	}
	obj := Object{
		"type":     String(stepType),
		"input":    orNull(input),
		"output":   orNull(output),
		"metadata": metadata,
	}
	hash, err := HashValue(obj, h.opts)
	if err != nil {
		return "", fmt.Errorf("step hash: %w", err)
	}
	return hash, nil
}

// StepHash computes a step content hash with the default hasher.
func StepHash(stepType string, input, output Value, metadata Object) (string, error) {
	return DefaultHasher().StepHash(stepType, input, output, metadata)
}

// IsHash reports whether s looks like a content hash produced by Digest.
func IsHash(s string) bool {
	if !strings.HasPrefix(s, HashPrefix) {
		return false
	}
	rest := s[len(HashPrefix):]
	if len(rest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}

func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}
